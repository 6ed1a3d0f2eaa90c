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

package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/notify"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

// TransactionFeed lists recent incoming transfers for the project wallet.
type TransactionFeed interface {
	FetchRecent(ctx context.Context, address string, maxPages int) ([]models.ChainTransaction, error)
}

// DepositListenerConfig contains configuration for DepositListener
type DepositListenerConfig struct {
	Feed            TransactionFeed
	DbService       store.LedgerStore
	Notifier        notify.Notifier
	WalletAddress   string
	MaxPages        int
	RecoveryPages   int
	InitialDelay    time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
	CacheRetention  time.Duration
	// Quiet disables the console summary printed for each poll.
	Quiet bool
}

// DepositListener polls the payment rail and credits deposits whose memo names a player.
type DepositListener struct {
	feed      TransactionFeed
	dbService store.LedgerStore
	notifier  notify.Notifier

	// State management for processed transactions
	processedTxIds  map[string]time.Time
	mutex           sync.RWMutex
	cacheRetention  time.Duration
	initialDelay    time.Duration
	pollingInterval time.Duration
	cleanupInterval time.Duration

	walletAddress string
	maxPages      int
	recoveryPages int
	quiet         bool

	// Now defaults to time.Now.
	Now func() time.Time

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	started  bool
}

// NewDepositListener creates a new deposit listener
func NewDepositListener(cfg DepositListenerConfig) *DepositListener {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	recoveryPages := cfg.RecoveryPages
	if recoveryPages < maxPages {
		recoveryPages = maxPages
	}
	cacheRetention := cfg.CacheRetention
	if cacheRetention <= 0 {
		cacheRetention = 24 * time.Hour
	}

	return &DepositListener{
		feed:            cfg.Feed,
		dbService:       cfg.DbService,
		notifier:        notifier,
		processedTxIds:  make(map[string]time.Time),
		cacheRetention:  cacheRetention,
		initialDelay:    cfg.InitialDelay,
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		walletAddress:   cfg.WalletAddress,
		maxPages:        maxPages,
		recoveryPages:   recoveryPages,
		quiet:           cfg.Quiet,
		Now:             time.Now,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins the deposit monitoring process
func (d *DepositListener) Start(ctx context.Context) error {
	zap.L().Info("Starting deposit listener", zap.String("wallet", d.walletAddress))

	if d.walletAddress == "" {
		return fmt.Errorf("no wallet address to monitor")
	}
	if d.pollingInterval <= 0 || d.cleanupInterval <= 0 {
		return fmt.Errorf("polling and cleanup intervals must be positive")
	}

	// Catch deposits that arrived while we were down
	d.performStartupRecovery(ctx)

	d.started = true
	go d.pollLoop(ctx)
	go d.cleanupLoop(ctx)

	zap.L().Info("Deposit listener started successfully",
		zap.Duration("initial_delay", d.initialDelay),
		zap.Duration("polling_interval", d.pollingInterval),
		zap.Int("max_pages", d.maxPages))

	return nil
}

// Stop gracefully stops the deposit listener
func (d *DepositListener) Stop() {
	if !d.started {
		return
	}
	zap.L().Info("Stopping deposit listener")
	close(d.stopChan)
	<-d.doneChan
	d.started = false
	zap.L().Info("Deposit listener stopped")
}

// pollLoop runs the main polling loop
func (d *DepositListener) pollLoop(ctx context.Context) {
	defer close(d.doneChan)

	first := time.NewTimer(d.initialDelay)
	defer first.Stop()

	select {
	case <-first.C:
		d.poll(ctx)
	case <-d.stopChan:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(d.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.poll(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *DepositListener) poll(ctx context.Context) {
	if !d.quiet {
		fmt.Printf("\n%s[%s] Polling %s for deposits%s\n",
			colorCyan, d.Now().Format("15:04:05"), shortId(d.walletAddress), colorReset)
	}

	if _, err := d.PollOnce(ctx); err != nil {
		if !d.quiet {
			fmt.Printf("  %s✗ %s%s\n", colorRed, err, colorReset)
		}
		zap.L().Error("Failed to poll deposits", zap.Error(err))
	}
}

// PollOnce fetches the newest page budget of transactions and credits every new deposit.
func (d *DepositListener) PollOnce(ctx context.Context) (PollResult, error) {
	return d.pollPages(ctx, d.maxPages)
}

func (d *DepositListener) pollPages(ctx context.Context, pages int) (PollResult, error) {
	var result PollResult

	transactions, err := d.feed.FetchRecent(ctx, d.walletAddress, pages)
	if err != nil {
		recordPollFailure()
		return result, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	result.Fetched = len(transactions)

	// Oldest first so credits land in chain order.
	for i := len(transactions) - 1; i >= 0; i-- {
		tx := transactions[i]
		if d.isTransactionProcessed(tx.Hash) {
			continue
		}
		result.add(d.processTransaction(ctx, tx))
	}

	if result.New() == 0 && result.Fetched > 0 {
		zap.L().Debug("All transactions already processed",
			zap.String("wallet", d.walletAddress),
			zap.Int("total", result.Fetched))
	}

	return result, nil
}

// performStartupRecovery walks a deeper page budget once before polling begins
func (d *DepositListener) performStartupRecovery(ctx context.Context) {
	zap.L().Info("Starting startup recovery process", zap.Int("pages", d.recoveryPages))

	result, err := d.pollPages(ctx, d.recoveryPages)
	if err != nil {
		// The poll loop picks up anything still inside its window.
		zap.L().Warn("Startup recovery failed, continuing with regular polling", zap.Error(err))
		return
	}

	zap.L().Info("Startup recovery completed",
		zap.Int("fetched", result.Fetched),
		zap.Int("credited", result.Credited),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("unknown_accounts", result.UnknownAccounts),
		zap.Int("failed", result.Failed))
}
