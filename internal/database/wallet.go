/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

// IsDepositCredited reports whether an external transaction has already been credited.
func (s *Service) IsDepositCredited(ctx context.Context, txHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, queryDepositExists, txHash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check deposit: %w", err)
	}
	return true, nil
}

func (s *Service) GetDeposits(ctx context.Context, userId string) ([]models.DepositRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryGetDeposits, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits: %w", err)
	}
	defer closeRows(rows)

	var deposits []models.DepositRecord
	for rows.Next() {
		var deposit models.DepositRecord
		var amount, creditedAt int64
		if err := rows.Scan(&deposit.TxHash, &deposit.UserId, &amount, &creditedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposit.Amount = models.Nanos(amount)
		deposit.CreditedAt = fromMillis(creditedAt)
		deposits = append(deposits, deposit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposit rows: %w", err)
	}
	return deposits, nil
}

// insertDeposit marks a transaction hash as credited. The hash is the primary
// key, so a second insert reports ErrDuplicateTransaction.
func insertDeposit(ctx context.Context, q queryer, deposit *models.DepositRecord) error {
	_, err := q.ExecContext(ctx, queryInsertDeposit,
		deposit.TxHash, deposit.UserId, int64(deposit.Amount), toMillis(deposit.CreditedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: deposit %s already credited", store.ErrDuplicateTransaction, deposit.TxHash)
		}
		return fmt.Errorf("failed to insert deposit: %w", err)
	}
	return nil
}

func (s *Service) GetWithdrawal(ctx context.Context, withdrawalId string) (*models.WithdrawRequest, error) {
	return getWithdrawal(ctx, s.db, withdrawalId)
}

func (s *Service) ListWithdrawals(ctx context.Context, userId string) ([]models.WithdrawRequest, error) {
	return queryWithdrawals(ctx, s.db, queryListUserWithdrawals, userId)
}

func (s *Service) ListWithdrawalsByStatus(ctx context.Context, status models.WithdrawStatus) ([]models.WithdrawRequest, error) {
	return queryWithdrawals(ctx, s.db, queryListWithdrawalsByStatus, string(status))
}

func insertWithdrawal(ctx context.Context, q queryer, request *models.WithdrawRequest) error {
	_, err := q.ExecContext(ctx, queryInsertWithdrawal,
		request.Id, request.UserId, int64(request.Amount), int64(request.Fee), int64(request.Total),
		request.DestinationAddress, string(request.Status),
		toMillis(request.CreatedAt), toMillis(request.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal request: %w", err)
	}
	return nil
}

func getWithdrawal(ctx context.Context, q queryer, withdrawalId string) (*models.WithdrawRequest, error) {
	request, err := scanWithdrawal(q.QueryRowContext(ctx, queryGetWithdrawal, withdrawalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrWithdrawalNotFound, withdrawalId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return request, nil
}

// updateWithdrawalStatus moves a request from one status to another. It fails
// with ErrInvalidTransition if the request is no longer in the from status.
func updateWithdrawalStatus(ctx context.Context, q queryer, withdrawalId string, from, to models.WithdrawStatus, at time.Time) error {
	result, err := q.ExecContext(ctx, queryUpdateWithdrawalStatus, string(to), toMillis(at), withdrawalId, string(from))
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		current, err := getWithdrawal(ctx, q, withdrawalId)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: withdrawal %s is %s, not %s", store.ErrInvalidTransition, withdrawalId, current.Status, from)
	}

	zap.L().Info("Withdrawal status updated",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

func queryWithdrawals(ctx context.Context, q queryer, query string, args ...any) ([]models.WithdrawRequest, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawal requests: %w", err)
	}
	defer closeRows(rows)

	var requests []models.WithdrawRequest
	for rows.Next() {
		request, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}
	return requests, nil
}

func scanWithdrawal(row rowScanner) (*models.WithdrawRequest, error) {
	var (
		request              models.WithdrawRequest
		amount, fee, total   int64
		status               string
		createdAt, updatedAt int64
	)
	err := row.Scan(&request.Id, &request.UserId, &amount, &fee, &total,
		&request.DestinationAddress, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	request.Amount = models.Nanos(amount)
	request.Fee = models.Nanos(fee)
	request.Total = models.Nanos(total)
	request.Status = models.WithdrawStatus(status)
	request.CreatedAt = fromMillis(createdAt)
	request.UpdatedAt = fromMillis(updatedAt)
	return &request, nil
}
