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

package auction

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

// Engine owns auction records and drives every bid, cancel and finalize through
// the ledger. Operations on one auction are serialized in-process; the stored
// record version guards against writers in other processes.
type Engine struct {
	store    store.LedgerStore
	params   models.EconomyParams
	notifier notify.Notifier
	locks    keylock.Map

	// Now is the engine clock. Tests replace it.
	Now func() time.Time
}

func NewEngine(st store.LedgerStore, params models.EconomyParams, notifier notify.Notifier) *Engine {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Engine{
		store:    st,
		params:   params,
		notifier: notifier,
		Now:      time.Now,
	}
}

func reference(kind, id, step string) string {
	return kind + ":" + id + ":" + step
}

// CreateAuction escrows goods from the seller and opens an auction ending after
// duration. A zero duration uses the configured default.
func (e *Engine) CreateAuction(ctx context.Context, sellerId string, goods int64, startPrice models.Nanos, duration time.Duration) (*models.Auction, error) {
	sellerId = strings.TrimSpace(sellerId)
	if sellerId == "" {
		return nil, fmt.Errorf("%w: seller id cannot be empty", store.ErrInvalidInput)
	}
	if goods < e.params.MinLotSize {
		return nil, fmt.Errorf("%w: lot of %d goods is below the minimum of %d", store.ErrInvalidInput, goods, e.params.MinLotSize)
	}
	if startPrice <= 0 {
		return nil, fmt.Errorf("%w: start price must be positive, got %s", store.ErrInvalidInput, startPrice)
	}
	// The first bid must still be representable: start price + increment fits in int64.
	if startPrice > models.Nanos(math.MaxInt64)-e.params.MinBidIncrement {
		return nil, fmt.Errorf("%w: start price %s leaves no room for a bid", store.ErrInvalidInput, startPrice)
	}
	if duration == 0 {
		duration = e.params.DefaultAuctionDuration
	}
	if duration < 0 || duration > e.params.MaxAuctionDuration {
		return nil, fmt.Errorf("%w: duration %v must be in (0, %v]", store.ErrInvalidInput, duration, e.params.MaxAuctionDuration)
	}

	now := e.Now()
	auction := &models.Auction{
		Id:          uuid.New().String(),
		SellerId:    sellerId,
		GoodsAmount: goods,
		StartPrice:  startPrice,
		CreatedAt:   now,
		EndTime:     now.Add(duration),
	}

	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		_, err := tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       sellerId,
			Field:        models.FieldGoods,
			Delta:        -goods,
			Kind:         "auction_escrow",
			Reference:    reference("auction", auction.Id, "escrow"),
			Counterparty: auction.Id,
		})
		if err != nil {
			return fmt.Errorf("failed to escrow auction goods: %w", err)
		}
		return tx.InsertAuction(ctx, auction)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Auction created",
		zap.String("auction_id", auction.Id),
		zap.String("seller_id", sellerId),
		zap.Int64("goods", goods),
		zap.String("start_price", startPrice.String()),
		zap.Time("end_time", auction.EndTime))
	notify.Emitf(e.notifier, "Auction %s created: %d goods from %s, start price %s", auction.Id, goods, sellerId, startPrice)

	return auction, nil
}

// PlaceBid escrows amount from the bidder, refunds the previous highest bidder
// and records the new highest bid. The new escrow is taken before the refund.
func (e *Engine) PlaceBid(ctx context.Context, auctionId, bidderId string, amount models.Nanos) (*models.Auction, error) {
	bidderId = strings.TrimSpace(bidderId)
	if bidderId == "" {
		return nil, fmt.Errorf("%w: bidder id cannot be empty", store.ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: bid must be positive, got %s", store.ErrInvalidInput, amount)
	}

	unlock := e.locks.Lock(auctionId)
	defer unlock()

	now := e.Now()
	var (
		updated  *models.Auction
		previous *models.Bid
	)
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		auction, err := tx.GetAuction(ctx, auctionId)
		if err != nil {
			return err
		}
		if auction.Expired(now) {
			return fmt.Errorf("%w: auction %s ended at %s", store.ErrAuctionClosed, auctionId, auction.EndTime.Format(time.RFC3339))
		}
		if auction.SellerId == bidderId {
			return fmt.Errorf("%w: seller cannot bid on own auction", store.ErrSelfTrade)
		}
		// Compared as a difference so a price near the int64 limit cannot wrap.
		current := auction.CurrentPrice()
		if amount <= current || amount-current < e.params.MinBidIncrement {
			return fmt.Errorf("%w: bid %s must exceed %s by at least %s", store.ErrBidTooLow, amount, current, e.params.MinBidIncrement)
		}

		bid := &models.Bid{
			Id:       uuid.New().String(),
			Amount:   amount,
			BidderId: bidderId,
			Time:     now,
		}

		_, err = tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       bidderId,
			Field:        models.FieldCurrency,
			Delta:        -int64(amount),
			Kind:         "bid_escrow",
			Reference:    reference("bid", bid.Id, "escrow"),
			Counterparty: auctionId,
		})
		if err != nil {
			return fmt.Errorf("failed to escrow bid: %w", err)
		}

		prev := auction.HighestBid
		if prev != nil {
			_, err = tx.AdjustBalance(ctx, store.AdjustParams{
				UserId:       prev.BidderId,
				Field:        models.FieldCurrency,
				Delta:        int64(prev.Amount),
				Kind:         "bid_refund",
				Reference:    reference("bid", prev.Id, "refund"),
				Counterparty: auctionId,
			})
			if err != nil {
				return fmt.Errorf("failed to refund previous bid: %w", err)
			}
		}

		auction.HighestBid = bid
		if err := tx.UpdateAuctionBid(ctx, auction); err != nil {
			return err
		}
		updated, previous = auction, prev
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BidsAccepted.Inc()
	fields := []zap.Field{
		zap.String("auction_id", auctionId),
		zap.String("bidder_id", bidderId),
		zap.String("amount", amount.String()),
	}
	if previous != nil {
		fields = append(fields, zap.String("refunded_bidder_id", previous.BidderId), zap.String("refunded_amount", previous.Amount.String()))
	}
	zap.L().Info("Bid accepted", fields...)
	notify.Emitf(e.notifier, "Bid %s accepted on auction %s from %s", amount, auctionId, bidderId)
	if previous != nil {
		notify.Emitf(e.notifier, "%s was outbid on auction %s, %s refunded", previous.BidderId, auctionId, previous.Amount)
	}

	return updated, nil
}

// CancelAuction removes an auction without bids and returns the goods to its seller.
func (e *Engine) CancelAuction(ctx context.Context, auctionId, callerId string) error {
	callerId = strings.TrimSpace(callerId)

	unlock := e.locks.Lock(auctionId)
	defer unlock()

	var cancelled *models.Auction
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		auction, err := tx.GetAuction(ctx, auctionId)
		if err != nil {
			return err
		}
		if auction.SellerId != callerId {
			return fmt.Errorf("%w: only the seller can cancel auction %s", store.ErrNotOwner, auctionId)
		}
		if auction.HasBids() {
			return fmt.Errorf("%w: auction %s cannot be cancelled", store.ErrHasBids, auctionId)
		}

		if err := tx.DeleteAuction(ctx, auctionId); err != nil {
			return err
		}
		_, err = tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       auction.SellerId,
			Field:        models.FieldGoods,
			Delta:        auction.GoodsAmount,
			Kind:         "auction_return",
			Reference:    reference("auction", auctionId, "return"),
			Counterparty: auctionId,
		})
		if err != nil {
			return fmt.Errorf("failed to return auction goods: %w", err)
		}
		cancelled = auction
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Auction cancelled",
		zap.String("auction_id", auctionId),
		zap.String("seller_id", cancelled.SellerId),
		zap.Int64("goods_returned", cancelled.GoodsAmount))
	notify.Emitf(e.notifier, "Auction %s cancelled, %d goods returned to %s", auctionId, cancelled.GoodsAmount, cancelled.SellerId)
	return nil
}

// Finalize settles an expired auction exactly once. An auction that was already
// settled is gone, so a repeat call reports ErrAuctionNotFound and changes nothing.
func (e *Engine) Finalize(ctx context.Context, auctionId string) (*models.Settlement, error) {
	unlock := e.locks.Lock(auctionId)
	defer unlock()

	now := e.Now()
	var settlement *models.Settlement
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		auction, err := tx.GetAuction(ctx, auctionId)
		if err != nil {
			return err
		}
		if !auction.Expired(now) {
			return fmt.Errorf("%w: auction %s ends at %s", store.ErrAuctionNotExpired, auctionId, auction.EndTime.Format(time.RFC3339))
		}

		result := &models.Settlement{
			AuctionId:   auctionId,
			SellerId:    auction.SellerId,
			GoodsAmount: auction.GoodsAmount,
			SettledAt:   now,
		}

		if !auction.HasBids() {
			result.Outcome = models.OutcomeUnsold
			if err := e.settleUnsold(ctx, tx, auction); err != nil {
				return err
			}
		} else {
			result.Outcome = models.OutcomeSold
			result.WinnerId = auction.HighestBid.BidderId
			result.Amount = auction.HighestBid.Amount
			result.Fee, result.SellerReceive = e.params.SplitFee(result.Amount)
			if err := e.settleSold(ctx, tx, auction, result); err != nil {
				return err
			}
		}

		// Removing the record is the completion signal.
		if err := tx.DeleteAuction(ctx, auctionId); err != nil {
			return err
		}
		settlement = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Settlements.WithLabelValues(string(settlement.Outcome)).Inc()
	if settlement.Outcome == models.OutcomeSold {
		metrics.FeesCollected.WithLabelValues("auction").Add(float64(settlement.Fee))
		zap.L().Info("Auction sold",
			zap.String("auction_id", auctionId),
			zap.String("seller_id", settlement.SellerId),
			zap.String("winner_id", settlement.WinnerId),
			zap.String("amount", settlement.Amount.String()),
			zap.String("fee", settlement.Fee.String()),
			zap.String("seller_receive", settlement.SellerReceive.String()))
		notify.Emitf(e.notifier, "Auction %s finished: %d goods to %s for %s (fee %s)",
			auctionId, settlement.GoodsAmount, settlement.WinnerId, settlement.Amount, settlement.Fee)
	} else {
		zap.L().Info("Auction closed without bids",
			zap.String("auction_id", auctionId),
			zap.String("seller_id", settlement.SellerId),
			zap.Int64("goods_returned", settlement.GoodsAmount))
		notify.Emitf(e.notifier, "Auction %s finished without bids, %d goods returned to %s",
			auctionId, settlement.GoodsAmount, settlement.SellerId)
	}

	return settlement, nil
}

func (e *Engine) settleUnsold(ctx context.Context, tx store.Tx, auction *models.Auction) error {
	_, err := tx.AdjustBalance(ctx, store.AdjustParams{
		UserId:       auction.SellerId,
		Field:        models.FieldGoods,
		Delta:        auction.GoodsAmount,
		Kind:         "auction_return",
		Reference:    reference("auction", auction.Id, "return"),
		Counterparty: auction.Id,
	})
	if err != nil {
		return fmt.Errorf("failed to return unsold goods: %w", err)
	}
	return nil
}

// settleSold pays the seller and delivers the goods. The winner's currency was
// escrowed when the bid was accepted, so nothing is debited here.
func (e *Engine) settleSold(ctx context.Context, tx store.Tx, auction *models.Auction, result *models.Settlement) error {
	_, err := tx.AdjustBalance(ctx, store.AdjustParams{
		UserId:       auction.SellerId,
		Field:        models.FieldCurrency,
		Delta:        int64(result.SellerReceive),
		Kind:         "auction_proceeds",
		Reference:    reference("auction", auction.Id, "proceeds"),
		Counterparty: result.WinnerId,
	})
	if err != nil {
		return fmt.Errorf("failed to pay seller: %w", err)
	}

	_, err = tx.AdjustBalance(ctx, store.AdjustParams{
		UserId:       result.WinnerId,
		Field:        models.FieldGoods,
		Delta:        auction.GoodsAmount,
		Kind:         "auction_delivery",
		Reference:    reference("auction", auction.Id, "delivery"),
		Counterparty: auction.SellerId,
	})
	if err != nil {
		return fmt.Errorf("failed to deliver goods: %w", err)
	}

	if result.Fee > 0 && e.params.FeeAccountId != "" {
		_, err = tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       e.params.FeeAccountId,
			Field:        models.FieldCurrency,
			Delta:        int64(result.Fee),
			Kind:         "platform_fee",
			Reference:    reference("auction", auction.Id, "fee"),
			Counterparty: auction.Id,
		})
		if err != nil {
			return fmt.Errorf("failed to collect fee: %w", err)
		}
	}
	return nil
}

func (e *Engine) GetAuction(ctx context.Context, auctionId string) (*models.Auction, error) {
	return e.store.GetAuction(ctx, auctionId)
}

// ListAuctions returns open auctions ordered by end time.
func (e *Engine) ListAuctions(ctx context.Context) ([]models.Auction, error) {
	return e.store.ListAuctions(ctx)
}

// ListExpired returns auctions that are due for settlement at now.
func (e *Engine) ListExpired(ctx context.Context, now time.Time) ([]models.Auction, error) {
	return e.store.ListExpiredAuctions(ctx, now)
}
