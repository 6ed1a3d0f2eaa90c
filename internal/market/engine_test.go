package market

import (
	"context"
	"errors"
	"math"
	"fmt"
	"sync"
	"testing"

	"github.com/Friday56/Goblin-miner/internal/database"
	"github.com/Friday56/Goblin-miner/internal/database/dbtest"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/notify"
	"github.com/Friday56/Goblin-miner/internal/store"
)

func setupEngine(t *testing.T, params models.EconomyParams) (*Engine, *database.Service, *notify.Recorder) {
	t.Helper()
	svc := dbtest.New(t)
	recorder := &notify.Recorder{}
	return NewEngine(svc, params, recorder), svc, recorder
}

func balances(t *testing.T, svc *database.Service, userId string) (models.Nanos, int64) {
	t.Helper()
	b, err := svc.GetBalances(context.Background(), userId)
	if err != nil {
		t.Fatalf("GetBalances(%s) failed: %v", userId, err)
	}
	return b.Currency, b.Goods
}

func nanos(s string) models.Nanos { return models.MustNanos(s) }

func TestBuy_Purchase(t *testing.T) {
	engine, svc, recorder := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 200)
	dbtest.Fund(t, svc, "buyer", models.FieldCurrency, int64(nanos("5")))

	listing, err := engine.CreateListing(ctx, "seller", 200, nanos("2.0"))
	if err != nil {
		t.Fatalf("CreateListing failed: %v", err)
	}
	if _, goods := balances(t, svc, "seller"); goods != 0 {
		t.Errorf("Expected goods escrowed, got %d", goods)
	}

	purchase, err := engine.Buy(ctx, listing.Id, "buyer")
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if purchase.Fee != nanos("0.1") || purchase.SellerReceive != nanos("1.9") {
		t.Errorf("Unexpected fee split: %+v", purchase)
	}

	buyerCurrency, buyerGoods := balances(t, svc, "buyer")
	if buyerCurrency != nanos("3") {
		t.Errorf("Expected buyer currency 3.0, got %s", buyerCurrency)
	}
	if buyerGoods != 200 {
		t.Errorf("Expected buyer goods 200, got %d", buyerGoods)
	}
	if cur, _ := balances(t, svc, "seller"); cur != nanos("1.9") {
		t.Errorf("Expected seller currency 1.9, got %s", cur)
	}

	if _, err := engine.Buy(ctx, listing.Id, "buyer"); !errors.Is(err, store.ErrListingNotFound) {
		t.Errorf("Expected ErrListingNotFound on second buy, got %v", err)
	}
	if !errors.Is(store.ErrListingNotFound, store.ErrNotFound) {
		t.Error("ErrListingNotFound must be a NotFound error")
	}
	if len(recorder.Messages()) != 2 {
		t.Errorf("Expected 2 events, got %v", recorder.Messages())
	}
}

func TestBuy_Rules(t *testing.T) {
	engine, svc, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "seller", models.FieldCurrency, int64(nanos("10")))
	dbtest.Fund(t, svc, "poor", models.FieldCurrency, int64(nanos("1")))

	listing, err := engine.CreateListing(ctx, "seller", 100, nanos("2"))
	if err != nil {
		t.Fatalf("CreateListing failed: %v", err)
	}

	if _, err := engine.Buy(ctx, listing.Id, "seller"); !errors.Is(err, store.ErrSelfTrade) {
		t.Errorf("Expected ErrSelfTrade, got %v", err)
	}
	if _, err := engine.Buy(ctx, listing.Id, "poor"); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}

	if cur, goods := balances(t, svc, "poor"); cur != nanos("1") || goods != 0 {
		t.Errorf("Failed purchase must not move funds, got %s / %d", cur, goods)
	}
	if cur, _ := balances(t, svc, "seller"); cur != nanos("10") {
		t.Errorf("Seller must not be paid for a failed purchase, got %s", cur)
	}
	if _, err := engine.GetListing(ctx, listing.Id); err != nil {
		t.Errorf("Listing must survive a failed purchase: %v", err)
	}
}

func TestCreateListing_Validation(t *testing.T) {
	engine, svc, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 150)

	if _, err := engine.CreateListing(ctx, "seller", 50, nanos("1")); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for small lot, got %v", err)
	}
	if _, err := engine.CreateListing(ctx, "seller", 100, 0); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero price, got %v", err)
	}
	if _, err := engine.CreateListing(ctx, "", 100, nanos("1")); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty seller, got %v", err)
	}
	if _, err := engine.CreateListing(ctx, "seller", 200, nanos("1")); !errors.Is(err, store.ErrInsufficientGoods) {
		t.Errorf("Expected ErrInsufficientGoods, got %v", err)
	}
	if _, goods := balances(t, svc, "seller"); goods != 150 {
		t.Errorf("Expected goods untouched, got %d", goods)
	}
}

func TestBuy_PriceAtInt64Limit(t *testing.T) {
	params := models.DefaultEconomyParams()
	params.FeeAccountId = "treasury"
	engine, svc, _ := setupEngine(t, params)
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 200)
	dbtest.Fund(t, svc, "seller", models.FieldCurrency, math.MaxInt64)
	dbtest.Fund(t, svc, "whale", models.FieldCurrency, math.MaxInt64)
	dbtest.Fund(t, svc, "bob", models.FieldCurrency, int64(nanos("10")))

	ceiling := models.Nanos(math.MaxInt64)
	listing, err := engine.CreateListing(ctx, "seller", 100, ceiling)
	if err != nil {
		t.Fatalf("CreateListing at max int64 failed: %v", err)
	}

	if _, err := engine.Buy(ctx, listing.Id, "bob"); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}

	// The seller's balance is already at the limit, so the proceeds credit would overflow.
	if _, err := engine.Buy(ctx, listing.Id, "whale"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput on proceeds overflow, got %v", err)
	}
	if cur, goods := balances(t, svc, "whale"); cur != ceiling || goods != 0 {
		t.Errorf("Failed purchase must leave buyer untouched, got %s / %d", cur, goods)
	}
	if _, err := engine.GetListing(ctx, listing.Id); err != nil {
		t.Errorf("Failed purchase must keep the listing open, got %v", err)
	}
}

func TestCancelListing(t *testing.T) {
	engine, svc, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	listing, _ := engine.CreateListing(ctx, "seller", 100, nanos("1"))

	if err := engine.CancelListing(ctx, listing.Id, "intruder"); !errors.Is(err, store.ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
	if err := engine.CancelListing(ctx, listing.Id, "  seller "); err != nil {
		t.Fatalf("CancelListing with surrounding whitespace failed: %v", err)
	}
	if _, goods := balances(t, svc, "seller"); goods != 100 {
		t.Errorf("Expected goods returned, got %d", goods)
	}
	if err := engine.CancelListing(ctx, listing.Id, "seller"); !errors.Is(err, store.ErrListingNotFound) {
		t.Errorf("Expected ErrListingNotFound, got %v", err)
	}
}

func TestBuy_FeeAccount(t *testing.T) {
	params := models.DefaultEconomyParams()
	params.FeeAccountId = "treasury"
	engine, svc, _ := setupEngine(t, params)
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "buyer", models.FieldCurrency, int64(nanos("1.3")))

	listing, _ := engine.CreateListing(ctx, "seller", 100, nanos("1.3"))
	if _, err := engine.Buy(ctx, listing.Id, "buyer"); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if cur, _ := balances(t, svc, "treasury"); cur != nanos("0.065") {
		t.Errorf("Expected treasury 0.065, got %s", cur)
	}
	if cur, _ := balances(t, svc, "seller"); cur != nanos("1.235") {
		t.Errorf("Expected seller 1.235, got %s", cur)
	}
}

func TestBuy_ConcurrentBuyersOnlyOneWins(t *testing.T) {
	svc := dbtest.NewFile(t)
	engine := NewEngine(svc, models.DefaultEconomyParams(), nil)
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	const buyers = 10
	for i := 0; i < buyers; i++ {
		dbtest.Fund(t, svc, fmt.Sprintf("buyer-%d", i), models.FieldCurrency, int64(nanos("5")))
	}
	listing, err := engine.CreateListing(ctx, "seller", 100, nanos("2"))
	if err != nil {
		t.Fatalf("CreateListing failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Buy(ctx, listing.Id, fmt.Sprintf("buyer-%d", i))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, store.ErrListingNotFound) {
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("Expected exactly one winner, got %d", wins)
	}
	var spent models.Nanos
	var goods int64
	for i := 0; i < buyers; i++ {
		cur, g := balances(t, svc, fmt.Sprintf("buyer-%d", i))
		spent += nanos("5") - cur
		goods += g
	}
	if spent != nanos("2") || goods != 100 {
		t.Errorf("Expected one payment of 2 and 100 goods delivered, got %s and %d", spent, goods)
	}
}
