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

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

// AdjustBalance applies a single conditional update as its own unit of work.
func (s *Service) AdjustBalance(ctx context.Context, params store.AdjustParams) (int64, error) {
	var balance int64
	err := s.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		balance, err = tx.AdjustBalance(ctx, params)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// GetBalance returns the current balance for a user and field. Unknown accounts read as zero.
func (s *Service) GetBalance(ctx context.Context, userId string, field models.Field) (int64, error) {
	balance, err := getBalance(ctx, s.db, userId, field)
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.String("field", string(field)), zap.Error(err))
		return 0, err
	}
	return balance, nil
}

func getBalance(ctx context.Context, q queryer, userId string, field models.Field) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx, queryGetBalance, userId, string(field)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// GetBalances returns both balances of an account.
func (s *Service) GetBalances(ctx context.Context, userId string) (models.Balances, error) {
	result := models.Balances{UserId: userId}

	balances, err := s.GetAllBalances(ctx, userId)
	if err != nil {
		return result, err
	}
	for _, balance := range balances {
		switch balance.Asset {
		case models.FieldCurrency:
			result.Currency = models.Nanos(balance.Balance)
		case models.FieldGoods:
			result.Goods = balance.Balance
		}
	}
	return result, nil
}

// GetAllBalances returns every persisted balance row for a user
func (s *Service) GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error) {
	zap.L().Debug("Getting all balances", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetAllUserBalances, userId)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer closeRows(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var balance models.AccountBalance
		var asset string
		var updatedAt int64
		err := rows.Scan(&balance.Id, &balance.UserId, &asset, &balance.Balance,
			&balance.LastEntryId, &balance.Version, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balance.Asset = models.Field(asset)
		balance.UpdatedAt = fromMillis(updatedAt)
		balances = append(balances, balance)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	return balances, nil
}

// GetLedgerEntries returns the audit trail for one balance, newest first.
func (s *Service) GetLedgerEntries(ctx context.Context, userId string, field models.Field, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetLedgerEntries, userId, string(field), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer closeRows(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var asset string
		var createdAt int64
		err := rows.Scan(&entry.Id, &entry.UserId, &asset, &entry.EntryType,
			&entry.Amount, &entry.BalanceBefore, &entry.BalanceAfter,
			&entry.Reference, &entry.Counterparty, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entry.Asset = models.Field(asset)
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}
	return entries, nil
}

// ReconcileBalance verifies that current balance matches sum of all ledger entries
func (s *Service) ReconcileBalance(ctx context.Context, userId string, field models.Field) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId), zap.String("field", string(field)))

	currentBalance, err := s.GetBalance(ctx, userId, field)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	var calculatedBalance int64
	err = s.db.QueryRowContext(ctx, queryReconcileBalance, userId, string(field)).Scan(&calculatedBalance)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from ledger entries: %w", err)
	}

	if currentBalance != calculatedBalance {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("field", string(field)),
			zap.Int64("current_balance", currentBalance),
			zap.Int64("calculated_balance", calculatedBalance),
			zap.Int64("difference", currentBalance-calculatedBalance))
		return fmt.Errorf("balance mismatch: current=%d, calculated=%d", currentBalance, calculatedBalance)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("field", string(field)),
		zap.Int64("balance", currentBalance))
	return nil
}
