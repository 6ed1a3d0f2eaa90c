package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Friday56/Goblin-miner/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func initLedgerSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- Account Balances Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS account_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		asset TEXT NOT NULL CHECK (asset IN ('currency', 'goods')),
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		last_entry_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL,
		UNIQUE(user_id, asset)
	);

	-- Ledger Entries Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		counterparty TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_account_balances_user_id ON account_balances(user_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_asset ON ledger_entries(user_id, asset);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at ON ledger_entries(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_reference ON ledger_entries(reference) WHERE reference != '';
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// adjustBalance is the conditional-update primitive. It must run inside a
// transaction: the lazily created zero row and the audit entry only persist
// if the whole unit commits.
func adjustBalance(ctx context.Context, q queryer, params store.AdjustParams) (int64, error) {
	if params.UserId == "" {
		return 0, fmt.Errorf("%w: user id cannot be empty", store.ErrInvalidInput)
	}
	if !params.Field.Valid() {
		return 0, fmt.Errorf("%w: unknown balance field %q", store.ErrInvalidInput, params.Field)
	}

	if params.Reference != "" {
		var existingId string
		err := q.QueryRowContext(ctx, queryCheckDuplicateReference, params.Reference).Scan(&existingId)
		if err == nil {
			return 0, fmt.Errorf("%w: reference %s already applied", store.ErrDuplicateTransaction, params.Reference)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to check for duplicate reference: %w", err)
		}
	}

	now := time.Now()
	if _, err := q.ExecContext(ctx, queryEnsureAccountBalance, uuid.New().String(), params.UserId, string(params.Field), toMillis(now)); err != nil {
		return 0, fmt.Errorf("failed to create account balance: %w", err)
	}

	var current, version int64
	if err := q.QueryRowContext(ctx, queryGetAccountBalance, params.UserId, string(params.Field)).Scan(&current, &version); err != nil {
		return 0, fmt.Errorf("failed to get current balance: %w", err)
	}

	if params.Delta > 0 && current > math.MaxInt64-params.Delta {
		return 0, fmt.Errorf("%w: %s balance overflow", store.ErrInvalidInput, params.Field)
	}
	next := current + params.Delta
	if next < 0 {
		return 0, fmt.Errorf("%w: %s balance %d cannot cover %d", store.InsufficientErr(params.Field), params.Field, current, -params.Delta)
	}

	entryId := uuid.New().String()
	_, err := q.ExecContext(ctx, queryInsertLedgerEntry,
		entryId, params.UserId, string(params.Field), params.Kind, params.Delta, current, next,
		params.Reference, params.Counterparty, toMillis(now))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: reference %s already applied", store.ErrDuplicateTransaction, params.Reference)
		}
		return 0, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	// Update account balance (with optimistic locking)
	result, err := q.ExecContext(ctx, queryUpdateAccountBalance, next, entryId, toMillis(now), params.UserId, string(params.Field), version)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return 0, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	zap.L().Debug("Balance adjusted",
		zap.String("user_id", params.UserId),
		zap.String("field", string(params.Field)),
		zap.String("kind", params.Kind),
		zap.Int64("delta", params.Delta),
		zap.Int64("old_balance", current),
		zap.Int64("new_balance", next),
		zap.String("reference", params.Reference))

	return next, nil
}
