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

package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Friday56/Goblin-miner/internal/metrics"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

// Finalizer is the part of the auction engine the scheduler drives.
type Finalizer interface {
	ListExpired(ctx context.Context, now time.Time) ([]models.Auction, error)
	Finalize(ctx context.Context, auctionId string) (*models.Settlement, error)
}

// SchedulerConfig contains configuration for Scheduler
type SchedulerConfig struct {
	Finalizer    Finalizer
	InitialDelay time.Duration
	Interval     time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// PassResult summarizes one settlement pass.
type PassResult struct {
	Sold    int
	Unsold  int
	Failed  int
	Skipped bool
}

// Scheduler periodically finalizes every auction past its end time.
type Scheduler struct {
	finalizer    Finalizer
	initialDelay time.Duration
	interval     time.Duration
	now          func() time.Time

	running atomic.Bool
	started atomic.Bool

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		finalizer:    cfg.Finalizer,
		initialDelay: cfg.InitialDelay,
		interval:     cfg.Interval,
		now:          now,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the first pass after the initial delay and then one per interval.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("settlement interval must be positive, got %v", s.interval)
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("settlement scheduler already started")
	}

	go s.loop(ctx)

	zap.L().Info("Settlement scheduler started",
		zap.Duration("initial_delay", s.initialDelay),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight pass.
func (s *Scheduler) Stop() {
	if !s.started.Load() {
		return
	}
	zap.L().Info("Stopping settlement scheduler")
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.doneChan
	zap.L().Info("Settlement scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneChan)

	first := time.NewTimer(s.initialDelay)
	defer first.Stop()

	select {
	case <-first.C:
		s.runLogged(ctx)
	case <-s.stopChan:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runLogged(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		zap.L().Error("Settlement pass failed", zap.Error(err))
	}
}

// RunOnce finalizes every expired auction. A pass that starts while another is
// still running returns immediately with Skipped set. Per-auction failures are
// logged and left for the next pass.
func (s *Scheduler) RunOnce(ctx context.Context) (PassResult, error) {
	var result PassResult
	if !s.running.CompareAndSwap(false, true) {
		zap.L().Debug("Settlement pass already running, skipping")
		result.Skipped = true
		return result, nil
	}
	defer s.running.Store(false)

	now := s.now()
	expired, err := s.finalizer.ListExpired(ctx, now)
	if err != nil {
		return result, fmt.Errorf("%w: failed to list expired auctions: %w", store.ErrUpstreamUnavailable, err)
	}
	if len(expired) == 0 {
		return result, nil
	}

	zap.L().Debug("Settling expired auctions", zap.Int("count", len(expired)), zap.Time("now", now))

	for _, auction := range expired {
		settlement, err := s.finalizer.Finalize(ctx, auction.Id)
		switch {
		case err == nil:
			if settlement.Outcome == models.OutcomeSold {
				result.Sold++
			} else {
				result.Unsold++
			}
		case errors.Is(err, store.ErrAuctionNotFound):
			// Settled by someone else since the listing.
			zap.L().Debug("Auction already settled", zap.String("auction_id", auction.Id))
		case errors.Is(err, store.ErrAuctionNotExpired):
			zap.L().Debug("Auction not yet expired", zap.String("auction_id", auction.Id))
		default:
			result.Failed++
			metrics.Settlements.WithLabelValues("failed").Inc()
			zap.L().Error("Failed to finalize auction",
				zap.String("auction_id", auction.Id),
				zap.Error(err))
		}

		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	zap.L().Info("Settlement pass completed",
		zap.Int("sold", result.Sold),
		zap.Int("unsold", result.Unsold),
		zap.Int("failed", result.Failed))
	return result, nil
}
