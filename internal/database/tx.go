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

	"github.com/Friday56/Goblin-miner/internal/metrics"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// RunInTx runs fn inside one SQL transaction. Write conflicts (stale version or
// SQLITE_BUSY) roll the unit back and re-run it from a fresh read with linear backoff.
func (s *Service) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		metrics.LedgerRetries.Inc()
		zap.L().Debug("Unit of work conflicted, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", s.maxRetries),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.retryBackoff):
		}
	}

	zap.L().Warn("Unit of work exhausted retries", zap.Int("max_retries", s.maxRetries), zap.Error(err))
	if errors.Is(err, store.ErrConcurrentModification) {
		return fmt.Errorf("gave up after %d attempts: %w", s.maxRetries, err)
	}
	return fmt.Errorf("gave up after %d attempts: %w: %w", s.maxRetries, store.ErrConcurrentModification, err)
}

func (s *Service) runOnce(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(&txn{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if errors.Is(err, store.ErrConcurrentModification) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// txn implements store.Tx on top of one *sql.Tx. It must never touch Service.db:
// with a single pooled connection that would deadlock.
type txn struct {
	tx *sql.Tx
}

var _ store.Tx = (*txn)(nil)

func (t *txn) AdjustBalance(ctx context.Context, params store.AdjustParams) (int64, error) {
	return adjustBalance(ctx, t.tx, params)
}

func (t *txn) GetBalance(ctx context.Context, userId string, field models.Field) (int64, error) {
	return getBalance(ctx, t.tx, userId, field)
}

func (t *txn) GetAuction(ctx context.Context, auctionId string) (*models.Auction, error) {
	return getAuction(ctx, t.tx, auctionId)
}

func (t *txn) InsertAuction(ctx context.Context, auction *models.Auction) error {
	return insertAuction(ctx, t.tx, auction)
}

func (t *txn) UpdateAuctionBid(ctx context.Context, auction *models.Auction) error {
	return updateAuctionBid(ctx, t.tx, auction)
}

func (t *txn) DeleteAuction(ctx context.Context, auctionId string) error {
	return deleteAuction(ctx, t.tx, auctionId)
}

func (t *txn) GetListing(ctx context.Context, listingId string) (*models.Listing, error) {
	return getListing(ctx, t.tx, listingId)
}

func (t *txn) InsertListing(ctx context.Context, listing *models.Listing) error {
	return insertListing(ctx, t.tx, listing)
}

func (t *txn) DeleteListing(ctx context.Context, listingId string) error {
	return deleteListing(ctx, t.tx, listingId)
}

func (t *txn) PlayerExists(ctx context.Context, playerId string) (bool, error) {
	return playerExists(ctx, t.tx, playerId)
}

func (t *txn) InsertDeposit(ctx context.Context, deposit *models.DepositRecord) error {
	return insertDeposit(ctx, t.tx, deposit)
}

func (t *txn) InsertWithdrawal(ctx context.Context, request *models.WithdrawRequest) error {
	return insertWithdrawal(ctx, t.tx, request)
}

func (t *txn) GetWithdrawal(ctx context.Context, withdrawalId string) (*models.WithdrawRequest, error) {
	return getWithdrawal(ctx, t.tx, withdrawalId)
}

func (t *txn) UpdateWithdrawalStatus(ctx context.Context, withdrawalId string, from, to models.WithdrawStatus, at time.Time) error {
	return updateWithdrawalStatus(ctx, t.tx, withdrawalId, from, to, at)
}
