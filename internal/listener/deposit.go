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
	"errors"
	"fmt"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/notify"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

var errUnknownAccount = errors.New("memo does not name a registered player")

// processTransaction credits one incoming transfer at most once.
// The deposits row and the ledger credit commit together, so a crash between
// them cannot double credit or lose the deposit.
func (d *DepositListener) processTransaction(ctx context.Context, tx models.ChainTransaction) outcome {
	if tx.Hash == "" || tx.AmountNanos <= 0 || tx.Memo == "" {
		zap.L().Debug("Ignoring transaction",
			zap.String("tx_hash", tx.Hash),
			zap.Int64("amount_nanos", tx.AmountNanos),
			zap.String("memo", tx.Memo))
		if tx.Hash != "" {
			d.markTransactionProcessed(tx.Hash)
		}
		return outcomeIgnored
	}

	amount := models.Nanos(tx.AmountNanos)
	err := d.dbService.RunInTx(ctx, func(dbTx store.Tx) error {
		known, err := dbTx.PlayerExists(ctx, tx.Memo)
		if err != nil {
			return err
		}
		if !known {
			return errUnknownAccount
		}

		if err := dbTx.InsertDeposit(ctx, &models.DepositRecord{
			TxHash:     tx.Hash,
			UserId:     tx.Memo,
			Amount:     amount,
			CreditedAt: d.Now().UTC(),
		}); err != nil {
			return err
		}

		_, err = dbTx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       tx.Memo,
			Field:        models.FieldCurrency,
			Delta:        int64(amount),
			Kind:         "deposit",
			Reference:    "deposit:" + tx.Hash,
			Counterparty: tx.Source,
		})
		return err
	})

	switch {
	case err == nil:
		d.markTransactionProcessed(tx.Hash)
		d.printLine(colorGreen, "✓", tx, "")
		zap.L().Info("Deposit credited",
			zap.String("tx_hash", tx.Hash),
			zap.String("user_id", tx.Memo),
			zap.String("amount", amount.String()))
		notify.Emitf(d.notifier, "Deposit: +%s TON for %s (tx %s)", amount, tx.Memo, shortId(tx.Hash))
		return outcomeCredited

	case errors.Is(err, store.ErrDuplicateTransaction):
		d.markTransactionProcessed(tx.Hash)
		zap.L().Debug("Deposit already credited", zap.String("tx_hash", tx.Hash))
		return outcomeDuplicate

	case errors.Is(err, errUnknownAccount):
		// Not cached: the player may register before the transfer leaves the window.
		d.printLine(colorYellow, "~", tx, "unknown player")
		zap.L().Debug("Deposit memo names no player",
			zap.String("tx_hash", tx.Hash),
			zap.String("memo", tx.Memo))
		return outcomeUnknownAccount

	default:
		d.printLine(colorRed, "✗", tx, err.Error())
		zap.L().Error("Failed to credit deposit",
			zap.String("tx_hash", tx.Hash),
			zap.String("memo", tx.Memo),
			zap.Error(fmt.Errorf("process deposit: %w", err)))
		return outcomeFailed
	}
}

func (d *DepositListener) printLine(color, symbol string, tx models.ChainTransaction, detail string) {
	if d.quiet {
		return
	}
	if detail != "" {
		fmt.Printf("  %s%s deposit %s -> %s | %s | %s%s\n",
			color, symbol, models.Nanos(tx.AmountNanos), tx.Memo, shortId(tx.Hash), detail, colorReset)
		return
	}
	fmt.Printf("  %s%s deposit %s -> %s | %s%s\n",
		color, symbol, models.Nanos(tx.AmountNanos), tx.Memo, shortId(tx.Hash), colorReset)
}
