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
	"fmt"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

const (
	defaultMaxRetries   = 5
	defaultRetryBackoff = 10 * time.Millisecond
)

type Service struct {
	db           *sql.DB
	maxRetries   int
	retryBackoff time.Duration
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative, got %d", cfg.MaxRetries)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// _txlock=immediate takes the write lock at BEGIN so concurrent units conflict
	// early with SQLITE_BUSY instead of failing at commit.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{
		db:           db,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
	}
	if service.maxRetries == 0 {
		service.maxRetries = defaultMaxRetries
	}
	if service.retryBackoff <= 0 {
		service.retryBackoff = defaultRetryBackoff
	}

	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully",
		zap.Int("max_retries", service.maxRetries),
		zap.Duration("retry_backoff", service.retryBackoff))
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context) error {
	if err := initLedgerSchema(ctx, s.db); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}

	schema := `
	-- Known account identifiers (deposit memos resolve against this table)
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Open auctions; a row is removed when the auction is cancelled or finalized
	CREATE TABLE IF NOT EXISTS auctions (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		goods_amount INTEGER NOT NULL CHECK (goods_amount > 0),
		start_price INTEGER NOT NULL CHECK (start_price > 0),
		highest_bid_id TEXT,
		highest_amount INTEGER,
		highest_bidder TEXT,
		highest_time INTEGER,
		created_at INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_auctions_end_time ON auctions(end_time);
	CREATE INDEX IF NOT EXISTS idx_auctions_seller_id ON auctions(seller_id);

	-- Open fixed-price listings
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		goods_amount INTEGER NOT NULL CHECK (goods_amount > 0),
		price INTEGER NOT NULL CHECK (price > 0),
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at);

	-- External transactions already credited (de-duplication set)
	CREATE TABLE IF NOT EXISTS deposits (
		tx_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		credited_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_user_id ON deposits(user_id);

	-- Withdrawal holds awaiting the off-chain payout process
	CREATE TABLE IF NOT EXISTS withdraw_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		fee INTEGER NOT NULL,
		total INTEGER NOT NULL,
		destination_address TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_withdraw_requests_user_id ON withdraw_requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_withdraw_requests_status ON withdraw_requests(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
