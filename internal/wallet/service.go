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

package wallet

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Friday56/Goblin-miner/internal/keylock"
	"github.com/Friday56/Goblin-miner/internal/metrics"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/notify"
	"github.com/Friday56/Goblin-miner/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service manages withdrawal holds: Pending -> Completed | Rejected.
type Service struct {
	store    store.LedgerStore
	params   models.EconomyParams
	notifier notify.Notifier
	locks    keylock.Map

	Now func() time.Time
}

func NewService(st store.LedgerStore, params models.EconomyParams, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Service{
		store:    st,
		params:   params,
		notifier: notifier,
		Now:      time.Now,
	}
}

func reference(withdrawalId, step string) string {
	return "withdrawal:" + withdrawalId + ":" + step
}

// RequestWithdrawal debits amount plus the withdrawal fee and records a pending request.
func (s *Service) RequestWithdrawal(ctx context.Context, userId string, amount models.Nanos, destination string) (*models.WithdrawRequest, error) {
	userId = strings.TrimSpace(userId)
	destination = strings.TrimSpace(destination)
	if userId == "" {
		return nil, fmt.Errorf("%w: user id cannot be empty", store.ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive, got %s", store.ErrInvalidInput, amount)
	}
	if len(destination) < s.params.MinWithdrawAddressLen {
		return nil, fmt.Errorf("%w: destination address must be at least %d characters", store.ErrInvalidInput, s.params.MinWithdrawAddressLen)
	}

	fee := amount.MulRate(s.params.WithdrawFeeRate)
	if int64(amount) > math.MaxInt64-int64(fee) {
		return nil, fmt.Errorf("%w: withdrawal amount too large", store.ErrInvalidInput)
	}
	total := amount + fee

	now := s.Now().UTC()
	request := &models.WithdrawRequest{
		Id:                 uuid.New().String(),
		UserId:             userId,
		Amount:             amount,
		Fee:                fee,
		Total:              total,
		DestinationAddress: destination,
		Status:             models.WithdrawPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		_, err := tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       userId,
			Field:        models.FieldCurrency,
			Delta:        -int64(total),
			Kind:         "withdrawal_hold",
			Reference:    reference(request.Id, "hold"),
			Counterparty: destination,
		})
		if err != nil {
			return fmt.Errorf("failed to hold withdrawal funds: %w", err)
		}
		return tx.InsertWithdrawal(ctx, request)
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalsRequested.Inc()
	zap.L().Info("Withdrawal requested",
		zap.String("withdrawal_id", request.Id),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
		zap.String("destination", destination))
	notify.Emitf(s.notifier, "Withdrawal request %s: %s TON (fee %s) to %s", request.Id, amount, fee, destination)

	return request, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, userId string) ([]models.WithdrawRequest, error) {
	return s.store.ListWithdrawals(ctx, userId)
}

func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]models.WithdrawRequest, error) {
	return s.store.ListWithdrawalsByStatus(ctx, models.WithdrawPending)
}

func (s *Service) GetWithdrawal(ctx context.Context, withdrawalId string) (*models.WithdrawRequest, error) {
	return s.store.GetWithdrawal(ctx, withdrawalId)
}

// CompleteWithdrawal marks a pending request as paid out. The held fee goes to
// the fee account when one is configured.
func (s *Service) CompleteWithdrawal(ctx context.Context, withdrawalId string) (*models.WithdrawRequest, error) {
	unlock := s.locks.Lock(withdrawalId)
	defer unlock()

	now := s.Now().UTC()
	var completed *models.WithdrawRequest
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		request, err := tx.GetWithdrawal(ctx, withdrawalId)
		if err != nil {
			return err
		}
		if err := tx.UpdateWithdrawalStatus(ctx, withdrawalId, models.WithdrawPending, models.WithdrawCompleted, now); err != nil {
			return err
		}

		if s.params.FeeAccountId != "" && request.Fee > 0 {
			_, err := tx.AdjustBalance(ctx, store.AdjustParams{
				UserId:       s.params.FeeAccountId,
				Field:        models.FieldCurrency,
				Delta:        int64(request.Fee),
				Kind:         "withdrawal_fee",
				Reference:    reference(withdrawalId, "fee"),
				Counterparty: request.UserId,
			})
			if err != nil {
				return fmt.Errorf("failed to collect withdrawal fee: %w", err)
			}
		}

		request.Status = models.WithdrawCompleted
		request.UpdatedAt = now
		completed = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.FeesCollected.WithLabelValues("withdrawal").Add(float64(completed.Fee))
	zap.L().Info("Withdrawal completed",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("user_id", completed.UserId),
		zap.String("amount", completed.Amount.String()))
	notify.Emitf(s.notifier, "Withdrawal %s completed: %s TON sent to %s", withdrawalId, completed.Amount, completed.DestinationAddress)

	return completed, nil
}

// RejectWithdrawal cancels a pending request and returns the full hold to the player.
func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalId string) (*models.WithdrawRequest, error) {
	unlock := s.locks.Lock(withdrawalId)
	defer unlock()

	now := s.Now().UTC()
	var rejected *models.WithdrawRequest
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		request, err := tx.GetWithdrawal(ctx, withdrawalId)
		if err != nil {
			return err
		}
		if err := tx.UpdateWithdrawalStatus(ctx, withdrawalId, models.WithdrawPending, models.WithdrawRejected, now); err != nil {
			return err
		}

		_, err = tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       request.UserId,
			Field:        models.FieldCurrency,
			Delta:        int64(request.Total),
			Kind:         "withdrawal_reversal",
			Reference:    reference(withdrawalId, "reversal"),
			Counterparty: request.DestinationAddress,
		})
		if err != nil {
			return fmt.Errorf("failed to reverse withdrawal hold: %w", err)
		}

		request.Status = models.WithdrawRejected
		request.UpdatedAt = now
		rejected = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal rejected",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("user_id", rejected.UserId),
		zap.String("refunded", rejected.Total.String()))
	notify.Emitf(s.notifier, "Withdrawal %s rejected, %s TON returned to %s", withdrawalId, rejected.Total, rejected.UserId)

	return rejected, nil
}
