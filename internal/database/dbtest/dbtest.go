// Package dbtest opens throwaway ledger databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Friday56/Goblin-miner/internal/database"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"
)

// New returns a Service backed by an in-memory SQLite database. The pool is
// pinned to one connection so every query sees the same database.
func New(t testing.TB) *database.Service {
	t.Helper()
	return open(t, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
		MaxRetries:   5,
		RetryBackoff: time.Millisecond,
	})
}

// NewFile returns a Service backed by a WAL database file in a temp dir, with a
// real connection pool. Use it when a test needs writers to actually contend.
func NewFile(t testing.TB) *database.Service {
	t.Helper()
	return open(t, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "economy.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
		PingTimeout:  5 * time.Second,
		MaxRetries:   20,
		RetryBackoff: time.Millisecond,
	})
}

func open(t testing.TB, cfg models.DatabaseConfig) *database.Service {
	t.Helper()

	svc, err := database.NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// Fund credits a player's balance outside of any engine operation.
func Fund(t testing.TB, svc *database.Service, userId string, field models.Field, amount int64) {
	t.Helper()
	_, err := svc.AdjustBalance(context.Background(), store.AdjustParams{
		UserId: userId,
		Field:  field,
		Delta:  amount,
		Kind:   "test_fund",
	})
	if err != nil {
		t.Fatalf("fund %s %s: %v", userId, field, err)
	}
}
