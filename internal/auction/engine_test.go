package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Friday56/Goblin-miner/internal/database"
	"github.com/Friday56/Goblin-miner/internal/database/dbtest"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/notify"
	"github.com/Friday56/Goblin-miner/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupEngine(t *testing.T, params models.EconomyParams) (*Engine, *database.Service, *fakeClock, *notify.Recorder) {
	t.Helper()
	svc := dbtest.New(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	recorder := &notify.Recorder{}
	engine := NewEngine(svc, params, recorder)
	engine.Now = clock.Now
	return engine, svc, clock, recorder
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

func TestAuction_OneOutbid(t *testing.T) {
	engine, svc, clock, recorder := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "alice", models.FieldCurrency, int64(nanos("5")))
	dbtest.Fund(t, svc, "bob", models.FieldCurrency, int64(nanos("5")))

	auction, err := engine.CreateAuction(ctx, "seller", 100, nanos("1.0"), 10*time.Minute)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}
	if _, goods := balances(t, svc, "seller"); goods != 0 {
		t.Errorf("Expected seller goods escrowed, got %d", goods)
	}

	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", nanos("1.1")); err != nil {
		t.Fatalf("Alice bid failed: %v", err)
	}
	if cur, _ := balances(t, svc, "alice"); cur != nanos("3.9") {
		t.Errorf("Expected alice 3.9 after bid, got %s", cur)
	}

	updated, err := engine.PlaceBid(ctx, auction.Id, "bob", nanos("1.3"))
	if err != nil {
		t.Fatalf("Bob bid failed: %v", err)
	}
	if updated.HighestBid.BidderId != "bob" || updated.HighestBid.Amount != nanos("1.3") {
		t.Errorf("Unexpected highest bid: %+v", updated.HighestBid)
	}
	if cur, _ := balances(t, svc, "alice"); cur != nanos("5") {
		t.Errorf("Expected alice refunded to 5, got %s", cur)
	}
	if cur, _ := balances(t, svc, "bob"); cur != nanos("3.7") {
		t.Errorf("Expected bob 3.7 after bid, got %s", cur)
	}

	clock.Advance(10 * time.Minute)
	settlement, err := engine.Finalize(ctx, auction.Id)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if settlement.Outcome != models.OutcomeSold || settlement.WinnerId != "bob" {
		t.Errorf("Unexpected settlement: %+v", settlement)
	}
	if cur, _ := balances(t, svc, "seller"); cur != nanos("1.235") {
		t.Errorf("Expected seller to receive 1.235, got %s", cur)
	}
	if _, goods := balances(t, svc, "bob"); goods != 100 {
		t.Errorf("Expected bob to receive 100 goods, got %d", goods)
	}
	if cur, _ := balances(t, svc, "bob"); cur != nanos("3.7") {
		t.Errorf("Expected bob not debited again, got %s", cur)
	}

	if _, err := engine.GetAuction(ctx, auction.Id); !errors.Is(err, store.ErrAuctionNotFound) {
		t.Errorf("Expected auction removed, got %v", err)
	}
	if len(recorder.Messages()) == 0 {
		t.Error("Expected notifier events")
	}
}

func TestAuction_NoBids(t *testing.T) {
	engine, svc, clock, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 150)
	auction, err := engine.CreateAuction(ctx, "seller", 150, nanos("1"), 0)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}
	if !auction.EndTime.Equal(clock.Now().Add(60 * time.Minute)) {
		t.Errorf("Expected default duration of 60m, got end time %v", auction.EndTime)
	}

	clock.Advance(time.Hour)
	settlement, err := engine.Finalize(ctx, auction.Id)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if settlement.Outcome != models.OutcomeUnsold {
		t.Errorf("Expected unsold outcome, got %s", settlement.Outcome)
	}
	if _, goods := balances(t, svc, "seller"); goods != 150 {
		t.Errorf("Expected 150 goods returned, got %d", goods)
	}
}

func TestAuction_InsufficientFundsBid(t *testing.T) {
	engine, svc, _, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "poor", models.FieldCurrency, int64(nanos("0.05")))

	auction, err := engine.CreateAuction(ctx, "seller", 100, nanos("1.0"), time.Minute)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	_, err = engine.PlaceBid(ctx, auction.Id, "poor", nanos("1.1"))
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	stored, err := engine.GetAuction(ctx, auction.Id)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if stored.HighestBid != nil {
		t.Errorf("Expected no highest bid, got %+v", stored.HighestBid)
	}
	if cur, _ := balances(t, svc, "poor"); cur != nanos("0.05") {
		t.Errorf("Expected balance untouched, got %s", cur)
	}
}

func TestCreateAuction_Validation(t *testing.T) {
	engine, svc, _, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 1000)

	tests := []struct {
		name     string
		goods    int64
		price    models.Nanos
		duration time.Duration
	}{
		{"lot below minimum", 99, nanos("1"), time.Minute},
		{"zero price", 100, 0, time.Minute},
		{"negative price", 100, -1, time.Minute},
		{"negative duration", 100, nanos("1"), -time.Minute},
		{"duration above maximum", 100, nanos("1"), 8 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CreateAuction(ctx, "seller", tt.goods, tt.price, tt.duration)
			if !errors.Is(err, store.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if _, goods := balances(t, svc, "seller"); goods != 1000 {
		t.Errorf("Expected goods untouched, got %d", goods)
	}

	_, err := engine.CreateAuction(ctx, "seller", 2000, nanos("1"), time.Minute)
	if !errors.Is(err, store.ErrInsufficientGoods) {
		t.Errorf("Expected ErrInsufficientGoods, got %v", err)
	}
	auctions, _ := engine.ListAuctions(ctx)
	if len(auctions) != 0 {
		t.Errorf("Expected no auctions created, got %d", len(auctions))
	}
}

func TestPlaceBid_Rules(t *testing.T) {
	engine, svc, clock, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "seller", models.FieldCurrency, int64(nanos("10")))
	dbtest.Fund(t, svc, "alice", models.FieldCurrency, int64(nanos("10")))
	dbtest.Fund(t, svc, "bob", models.FieldCurrency, int64(nanos("10")))

	auction, err := engine.CreateAuction(ctx, "seller", 100, nanos("1"), time.Minute)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	if _, err := engine.PlaceBid(ctx, "missing", "alice", nanos("2")); !errors.Is(err, store.ErrAuctionNotFound) {
		t.Errorf("Expected ErrAuctionNotFound, got %v", err)
	}
	if _, err := engine.PlaceBid(ctx, auction.Id, "seller", nanos("2")); !errors.Is(err, store.ErrSelfTrade) {
		t.Errorf("Expected ErrSelfTrade, got %v", err)
	}
	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", nanos("1.05")); !errors.Is(err, store.ErrBidTooLow) {
		t.Errorf("Expected ErrBidTooLow below start+increment, got %v", err)
	}
	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", 0); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero bid, got %v", err)
	}

	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", nanos("1.5")); err != nil {
		t.Fatalf("Alice bid failed: %v", err)
	}
	// Above the current highest but by less than the increment.
	if _, err := engine.PlaceBid(ctx, auction.Id, "bob", nanos("1.59")); !errors.Is(err, store.ErrBidTooLow) {
		t.Errorf("Expected ErrBidTooLow, got %v", err)
	}
	stored, _ := engine.GetAuction(ctx, auction.Id)
	if stored.HighestBid.BidderId != "alice" || stored.HighestBid.Amount != nanos("1.5") {
		t.Errorf("Rejected bid must not change the highest bid, got %+v", stored.HighestBid)
	}
	if cur, _ := balances(t, svc, "bob"); cur != nanos("10") {
		t.Errorf("Rejected bidder must not be debited, got %s", cur)
	}

	clock.Advance(time.Minute)
	if _, err := engine.PlaceBid(ctx, auction.Id, "bob", nanos("5")); !errors.Is(err, store.ErrAuctionClosed) {
		t.Errorf("Expected ErrAuctionClosed at end time, got %v", err)
	}
}

func TestAuction_PriceLimits(t *testing.T) {
	engine, svc, _, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	increment := models.DefaultEconomyParams().MinBidIncrement
	ceiling := models.Nanos(math.MaxInt64)

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 300)
	dbtest.Fund(t, svc, "whale", models.FieldCurrency, math.MaxInt64)
	dbtest.Fund(t, svc, "bob", models.FieldCurrency, int64(nanos("10")))

	tests := []struct {
		name  string
		price models.Nanos
	}{
		{"max int64", ceiling},
		{"less than one increment below max", ceiling - increment + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CreateAuction(ctx, "seller", 100, tt.price, time.Minute)
			if !errors.Is(err, store.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput for start price %s, got %v", tt.price, err)
			}
		})
	}

	auction, err := engine.CreateAuction(ctx, "seller", 100, ceiling-increment, time.Minute)
	if err != nil {
		t.Fatalf("CreateAuction at the highest allowed start price failed: %v", err)
	}
	if _, err := engine.PlaceBid(ctx, auction.Id, "bob", nanos("0.5")); !errors.Is(err, store.ErrBidTooLow) {
		t.Errorf("Expected ErrBidTooLow for a small bid on a huge start price, got %v", err)
	}
	if _, err := engine.PlaceBid(ctx, auction.Id, "whale", ceiling); err != nil {
		t.Fatalf("Bid at max int64 failed: %v", err)
	}

	// Nothing can exceed the highest bid by an increment any more.
	for _, amount := range []models.Nanos{nanos("0.5"), ceiling - 1, ceiling} {
		if _, err := engine.PlaceBid(ctx, auction.Id, "bob", amount); !errors.Is(err, store.ErrBidTooLow) {
			t.Errorf("Expected ErrBidTooLow for %s, got %v", amount, err)
		}
	}
	if cur, _ := balances(t, svc, "bob"); cur != nanos("10") {
		t.Errorf("Rejected bidder must not be debited, got %s", cur)
	}
	stored, _ := engine.GetAuction(ctx, auction.Id)
	if stored.HighestBid == nil || stored.HighestBid.BidderId != "whale" {
		t.Errorf("Expected whale to stay highest bidder, got %+v", stored.HighestBid)
	}
}

func TestPlaceBid_HighestBidderRaisesOwnBid(t *testing.T) {
	engine, svc, _, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "alice", models.FieldCurrency, int64(nanos("3")))

	auction, _ := engine.CreateAuction(ctx, "seller", 100, nanos("1"), time.Minute)
	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", nanos("1.5")); err != nil {
		t.Fatalf("First bid failed: %v", err)
	}
	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", nanos("2")); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	if cur, _ := balances(t, svc, "alice"); cur != nanos("1") {
		t.Errorf("Expected only the latest bid escrowed, got balance %s", cur)
	}
}

func TestCancelAuction(t *testing.T) {
	engine, svc, _, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 300)
	dbtest.Fund(t, svc, "alice", models.FieldCurrency, int64(nanos("5")))

	quiet, _ := engine.CreateAuction(ctx, "seller", 100, nanos("1"), time.Minute)
	busy, _ := engine.CreateAuction(ctx, "seller", 200, nanos("1"), time.Minute)
	if _, err := engine.PlaceBid(ctx, busy.Id, "alice", nanos("1.1")); err != nil {
		t.Fatalf("PlaceBid failed: %v", err)
	}

	if err := engine.CancelAuction(ctx, quiet.Id, "alice"); !errors.Is(err, store.ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
	if err := engine.CancelAuction(ctx, busy.Id, "seller"); !errors.Is(err, store.ErrHasBids) {
		t.Errorf("Expected ErrHasBids, got %v", err)
	}
	if err := engine.CancelAuction(ctx, quiet.Id, " seller\n"); err != nil {
		t.Fatalf("CancelAuction with surrounding whitespace failed: %v", err)
	}
	if _, goods := balances(t, svc, "seller"); goods != 100 {
		t.Errorf("Expected 100 goods back, got %d", goods)
	}
	if err := engine.CancelAuction(ctx, quiet.Id, "seller"); !errors.Is(err, store.ErrAuctionNotFound) {
		t.Errorf("Expected ErrAuctionNotFound on second cancel, got %v", err)
	}
}

func TestFinalize_ExactlyOnce(t *testing.T) {
	engine, svc, clock, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "alice", models.FieldCurrency, int64(nanos("2")))

	auction, _ := engine.CreateAuction(ctx, "seller", 100, nanos("1"), time.Minute)
	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", nanos("2")); err != nil {
		t.Fatalf("PlaceBid failed: %v", err)
	}

	if _, err := engine.Finalize(ctx, auction.Id); !errors.Is(err, store.ErrAuctionNotExpired) {
		t.Fatalf("Expected ErrAuctionNotExpired, got %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := engine.Finalize(ctx, auction.Id); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if _, err := engine.Finalize(ctx, auction.Id); !errors.Is(err, store.ErrAuctionNotFound) {
		t.Fatalf("Expected ErrAuctionNotFound on second finalize, got %v", err)
	}

	cur, _ := balances(t, svc, "seller")
	if cur != nanos("1.9") {
		t.Errorf("Expected seller paid once (1.9), got %s", cur)
	}
	_, goods := balances(t, svc, "alice")
	if goods != 100 {
		t.Errorf("Expected alice to receive goods once, got %d", goods)
	}
}

func TestFinalize_FeeAccount(t *testing.T) {
	params := models.DefaultEconomyParams()
	params.FeeAccountId = "treasury"
	engine, svc, clock, _ := setupEngine(t, params)
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	dbtest.Fund(t, svc, "alice", models.FieldCurrency, int64(nanos("2")))

	auction, _ := engine.CreateAuction(ctx, "seller", 100, nanos("1"), time.Minute)
	if _, err := engine.PlaceBid(ctx, auction.Id, "alice", nanos("2")); err != nil {
		t.Fatalf("PlaceBid failed: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := engine.Finalize(ctx, auction.Id); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if cur, _ := balances(t, svc, "treasury"); cur != nanos("0.1") {
		t.Errorf("Expected treasury fee 0.1, got %s", cur)
	}
}

// Currency and goods held by accounts plus what is escrowed in open auctions
// must stay constant, apart from fees.
func TestAuction_EscrowConservation(t *testing.T) {
	engine, svc, clock, _ := setupEngine(t, models.DefaultEconomyParams())
	ctx := context.Background()

	players := []string{"seller", "alice", "bob", "carol"}
	dbtest.Fund(t, svc, "seller", models.FieldGoods, 1000)
	for _, p := range players[1:] {
		dbtest.Fund(t, svc, p, models.FieldCurrency, int64(nanos("10")))
	}
	totalCurrency := nanos("30")
	var totalFees models.Nanos

	check := func(step string) {
		t.Helper()
		var currency models.Nanos
		var goods int64
		for _, p := range players {
			c, g := balances(t, svc, p)
			if c < 0 || g < 0 {
				t.Fatalf("%s: negative balance for %s", step, p)
			}
			currency += c
			goods += g
		}
		auctions, err := engine.ListAuctions(ctx)
		if err != nil {
			t.Fatalf("%s: ListAuctions failed: %v", step, err)
		}
		for _, a := range auctions {
			goods += a.GoodsAmount
			if a.HighestBid != nil {
				currency += a.HighestBid.Amount
			}
		}
		if currency+totalFees != totalCurrency {
			t.Errorf("%s: currency not conserved: %s + fees %s != %s", step, currency, totalFees, totalCurrency)
		}
		if goods != 1000 {
			t.Errorf("%s: goods not conserved: %d", step, goods)
		}
	}

	a1, _ := engine.CreateAuction(ctx, "seller", 300, nanos("1"), time.Minute)
	a2, _ := engine.CreateAuction(ctx, "seller", 200, nanos("0.5"), 2*time.Minute)
	a3, _ := engine.CreateAuction(ctx, "seller", 100, nanos("0.5"), time.Minute)
	check("create")

	bids := []struct {
		auction string
		bidder  string
		amount  string
	}{
		{a1.Id, "alice", "1.1"},
		{a1.Id, "bob", "1.5"},
		{a2.Id, "carol", "0.7"},
		{a1.Id, "carol", "2.25"},
		{a2.Id, "alice", "3"},
		{a1.Id, "alice", "9.9"}, // insufficient after the a2 escrow
	}
	for i, b := range bids {
		_, _ = engine.PlaceBid(ctx, b.auction, b.bidder, nanos(b.amount))
		check(fmt.Sprintf("bid %d", i))
	}

	if err := engine.CancelAuction(ctx, a3.Id, "seller"); err != nil {
		t.Fatalf("CancelAuction failed: %v", err)
	}
	check("cancel")

	clock.Advance(2 * time.Minute)
	for _, id := range []string{a1.Id, a2.Id} {
		settlement, err := engine.Finalize(ctx, id)
		if err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}
		totalFees += settlement.Fee
		check("finalize " + id)
	}
}

func TestPlaceBid_ConcurrentBidsAreSerialized(t *testing.T) {
	svc := dbtest.NewFile(t)
	engine := NewEngine(svc, models.DefaultEconomyParams(), nil)
	ctx := context.Background()

	dbtest.Fund(t, svc, "seller", models.FieldGoods, 100)
	const bidders = 12
	for i := 0; i < bidders; i++ {
		dbtest.Fund(t, svc, fmt.Sprintf("bidder-%d", i), models.FieldCurrency, int64(nanos("100")))
	}

	auction, err := engine.CreateAuction(ctx, "seller", 100, nanos("1"), time.Hour)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := nanos("2") + models.Nanos(i)*nanos("0.5")
			_, err := engine.PlaceBid(ctx, auction.Id, fmt.Sprintf("bidder-%d", i), amount)
			if err != nil && !errors.Is(err, store.ErrBidTooLow) {
				t.Errorf("Unexpected bid error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := engine.GetAuction(ctx, auction.Id)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if stored.HighestBid == nil {
		t.Fatal("Expected a highest bid")
	}

	// Exactly one bidder is out of pocket, by exactly the highest bid.
	var escrowed models.Nanos
	for i := 0; i < bidders; i++ {
		id := fmt.Sprintf("bidder-%d", i)
		cur, _ := balances(t, svc, id)
		held := nanos("100") - cur
		if held != 0 && id != stored.HighestBid.BidderId {
			t.Errorf("%s has %s escrowed but does not hold the highest bid", id, held)
		}
		escrowed += held
	}
	if escrowed != stored.HighestBid.Amount {
		t.Errorf("Expected escrow %s to match highest bid %s", escrowed, stored.HighestBid.Amount)
	}
}
