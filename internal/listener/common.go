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
	"time"

	"github.com/Friday56/Goblin-miner/internal/metrics"

	"go.uber.org/zap"
)

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type outcome string

const (
	outcomeCredited       outcome = "credited"
	outcomeDuplicate      outcome = "duplicate"
	outcomeUnknownAccount outcome = "unknown_account"
	outcomeIgnored        outcome = "ignored"
	outcomeFailed         outcome = "failed"
)

// PollResult counts what happened to the transactions seen in one poll.
type PollResult struct {
	Fetched         int
	Credited        int
	Duplicates      int
	UnknownAccounts int
	Ignored         int
	Failed          int
}

// New is the number of transactions that were not already cached.
func (r PollResult) New() int {
	return r.Credited + r.Duplicates + r.UnknownAccounts + r.Ignored + r.Failed
}

func (r *PollResult) add(o outcome) {
	metrics.Deposits.WithLabelValues(string(o)).Inc()

	switch o {
	case outcomeCredited:
		r.Credited++
	case outcomeDuplicate:
		r.Duplicates++
	case outcomeUnknownAccount:
		r.UnknownAccounts++
	case outcomeIgnored:
		r.Ignored++
	default:
		r.Failed++
	}
}

func recordPollFailure() {
	metrics.DepositPollFailures.Inc()
}

func shortId(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// isTransactionProcessed checks if we've already processed this transaction
func (d *DepositListener) isTransactionProcessed(txHash string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	_, exists := d.processedTxIds[txHash]
	return exists
}

// markTransactionProcessed marks a transaction as processed
func (d *DepositListener) markTransactionProcessed(txHash string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.processedTxIds[txHash] = d.Now()
}

// cleanupLoop periodically cleans old processed transaction hashes
func (d *DepositListener) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanupProcessedTransactions()
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupProcessedTransactions removes old entries from processed transactions map.
// Evicted hashes are still protected by the deposits table.
func (d *DepositListener) cleanupProcessedTransactions() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	cutoff := d.Now().Add(-d.cacheRetention)
	cleaned := 0

	for txHash, processedTime := range d.processedTxIds {
		if processedTime.Before(cutoff) {
			delete(d.processedTxIds, txHash)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up old processed transactions",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(d.processedTxIds)))
	}
	return cleaned
}
