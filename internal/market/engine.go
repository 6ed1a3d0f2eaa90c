package market

import (
	"context"
	"fmt"
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

// Engine owns fixed-price listings: Listed -> Purchased | Cancelled.
type Engine struct {
	store    store.LedgerStore
	params   models.EconomyParams
	notifier notify.Notifier
	locks    keylock.Map

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

func reference(listingId, step string) string {
	return "listing:" + listingId + ":" + step
}

// CreateListing escrows goods from the seller and publishes them at price.
func (e *Engine) CreateListing(ctx context.Context, sellerId string, goods int64, price models.Nanos) (*models.Listing, error) {
	sellerId = strings.TrimSpace(sellerId)
	if sellerId == "" {
		return nil, fmt.Errorf("%w: seller id cannot be empty", store.ErrInvalidInput)
	}
	if goods < e.params.MinLotSize {
		return nil, fmt.Errorf("%w: lot of %d goods is below the minimum of %d", store.ErrInvalidInput, goods, e.params.MinLotSize)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %s", store.ErrInvalidInput, price)
	}

	listing := &models.Listing{
		Id:          uuid.New().String(),
		SellerId:    sellerId,
		GoodsAmount: goods,
		Price:       price,
		CreatedAt:   e.Now(),
	}

	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		_, err := tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       sellerId,
			Field:        models.FieldGoods,
			Delta:        -goods,
			Kind:         "listing_escrow",
			Reference:    reference(listing.Id, "escrow"),
			Counterparty: listing.Id,
		})
		if err != nil {
			return fmt.Errorf("failed to escrow listing goods: %w", err)
		}
		return tx.InsertListing(ctx, listing)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Listing created",
		zap.String("listing_id", listing.Id),
		zap.String("seller_id", sellerId),
		zap.Int64("goods", goods),
		zap.String("price", price.String()))
	notify.Emitf(e.notifier, "Listing %s created: %d goods from %s for %s", listing.Id, goods, sellerId, price)

	return listing, nil
}

// Buy debits the buyer, pays the seller net of the fee, delivers the goods and
// removes the listing, in that order, as one unit.
func (e *Engine) Buy(ctx context.Context, listingId, buyerId string) (*models.Purchase, error) {
	buyerId = strings.TrimSpace(buyerId)
	if buyerId == "" {
		return nil, fmt.Errorf("%w: buyer id cannot be empty", store.ErrInvalidInput)
	}

	unlock := e.locks.Lock(listingId)
	defer unlock()

	now := e.Now()
	var purchase *models.Purchase
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		listing, err := tx.GetListing(ctx, listingId)
		if err != nil {
			return err
		}
		if listing.SellerId == buyerId {
			return fmt.Errorf("%w: cannot buy own listing", store.ErrSelfTrade)
		}

		fee, sellerReceive := e.params.SplitFee(listing.Price)
		result := &models.Purchase{
			ListingId:     listingId,
			SellerId:      listing.SellerId,
			BuyerId:       buyerId,
			GoodsAmount:   listing.GoodsAmount,
			Price:         listing.Price,
			Fee:           fee,
			SellerReceive: sellerReceive,
			PurchasedAt:   now,
		}

		steps := []store.AdjustParams{
			{
				UserId:       buyerId,
				Field:        models.FieldCurrency,
				Delta:        -int64(listing.Price),
				Kind:         "purchase_payment",
				Reference:    reference(listingId, "payment"),
				Counterparty: listing.SellerId,
			},
			{
				UserId:       listing.SellerId,
				Field:        models.FieldCurrency,
				Delta:        int64(sellerReceive),
				Kind:         "listing_proceeds",
				Reference:    reference(listingId, "proceeds"),
				Counterparty: buyerId,
			},
			{
				UserId:       buyerId,
				Field:        models.FieldGoods,
				Delta:        listing.GoodsAmount,
				Kind:         "listing_delivery",
				Reference:    reference(listingId, "delivery"),
				Counterparty: listing.SellerId,
			},
		}
		if fee > 0 && e.params.FeeAccountId != "" {
			steps = append(steps, store.AdjustParams{
				UserId:       e.params.FeeAccountId,
				Field:        models.FieldCurrency,
				Delta:        int64(fee),
				Kind:         "platform_fee",
				Reference:    reference(listingId, "fee"),
				Counterparty: listingId,
			})
		}
		for _, step := range steps {
			if _, err := tx.AdjustBalance(ctx, step); err != nil {
				return fmt.Errorf("failed to apply %s: %w", step.Kind, err)
			}
		}

		if err := tx.DeleteListing(ctx, listingId); err != nil {
			return err
		}
		purchase = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Purchases.Inc()
	metrics.FeesCollected.WithLabelValues("market").Add(float64(purchase.Fee))
	zap.L().Info("Listing purchased",
		zap.String("listing_id", listingId),
		zap.String("seller_id", purchase.SellerId),
		zap.String("buyer_id", buyerId),
		zap.Int64("goods", purchase.GoodsAmount),
		zap.String("price", purchase.Price.String()),
		zap.String("fee", purchase.Fee.String()))
	notify.Emitf(e.notifier, "%s bought %d goods for %s (fee %s)", buyerId, purchase.GoodsAmount, purchase.Price, purchase.Fee)

	return purchase, nil
}

// CancelListing removes a listing and returns its goods to the seller.
func (e *Engine) CancelListing(ctx context.Context, listingId, callerId string) error {
	callerId = strings.TrimSpace(callerId)

	unlock := e.locks.Lock(listingId)
	defer unlock()

	var cancelled *models.Listing
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		listing, err := tx.GetListing(ctx, listingId)
		if err != nil {
			return err
		}
		if listing.SellerId != callerId {
			return fmt.Errorf("%w: only the seller can cancel listing %s", store.ErrNotOwner, listingId)
		}

		if err := tx.DeleteListing(ctx, listingId); err != nil {
			return err
		}
		_, err = tx.AdjustBalance(ctx, store.AdjustParams{
			UserId:       listing.SellerId,
			Field:        models.FieldGoods,
			Delta:        listing.GoodsAmount,
			Kind:         "listing_return",
			Reference:    reference(listingId, "return"),
			Counterparty: listingId,
		})
		if err != nil {
			return fmt.Errorf("failed to return listing goods: %w", err)
		}
		cancelled = listing
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Listing cancelled",
		zap.String("listing_id", listingId),
		zap.String("seller_id", cancelled.SellerId),
		zap.Int64("goods_returned", cancelled.GoodsAmount))
	notify.Emitf(e.notifier, "Listing %s cancelled, %d goods returned to %s", listingId, cancelled.GoodsAmount, cancelled.SellerId)
	return nil
}

func (e *Engine) GetListing(ctx context.Context, listingId string) (*models.Listing, error) {
	return e.store.GetListing(ctx, listingId)
}

// ListListings returns open listings, newest first.
func (e *Engine) ListListings(ctx context.Context) ([]models.Listing, error) {
	return e.store.ListListings(ctx)
}
