package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Friday56/Goblin-miner/internal/auction"
	"github.com/Friday56/Goblin-miner/internal/database"
	"github.com/Friday56/Goblin-miner/internal/database/dbtest"
	"github.com/Friday56/Goblin-miner/internal/market"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/wallet"
)

type testEnv struct {
	url string
	db  *database.Service
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	params := models.DefaultEconomyParams()

	server := NewServer(ServerConfig{
		Store:          db,
		Auctions:       auction.NewEngine(db, params, nil),
		Market:         market.NewEngine(db, params, nil),
		Wallet:         wallet.NewService(db, params, nil),
		DepositAddress: "EQproject-wallet",
	})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{url: ts.URL, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, player string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Failed to encode body: %v", err)
			}
			reader = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequest(method, e.url+path, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if player != "" {
		req.Header.Set(PlayerHeader, player)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("Failed to decode %s: %v", data, err)
	}
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupServer(t)

	if status, _ := env.do(t, http.MethodGet, "/health", "", nil); status != http.StatusOK {
		t.Errorf("Expected /health 200, got %d", status)
	}
	status, body := env.do(t, http.MethodGet, "/metrics", "", nil)
	if status != http.StatusOK {
		t.Errorf("Expected /metrics 200, got %d", status)
	}
	if !strings.Contains(string(body), "economy_http_requests_total") {
		t.Error("Expected request counter in metrics output")
	}
}

func TestPlayerHeaderRequired(t *testing.T) {
	env := setupServer(t)

	status, _ := env.do(t, http.MethodGet, "/v1/me/balances", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("Expected 401 without %s, got %d", PlayerHeader, status)
	}

	status, _ = env.do(t, http.MethodGet, "/v1/me/balances", "newcomer", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	exists, err := env.db.PlayerExists(context.Background(), "newcomer")
	if err != nil || !exists {
		t.Errorf("Expected caller registered as player, got %v %v", exists, err)
	}
}

func TestAuctionFlow(t *testing.T) {
	env := setupServer(t)
	dbtest.Fund(t, env.db, "seller", models.FieldGoods, 500)
	dbtest.Fund(t, env.db, "alice", models.FieldCurrency, int64(models.MustNanos("3")))

	status, body := env.do(t, http.MethodPost, "/v1/auctions", "seller",
		`{"goods_amount":100,"start_price":"1","duration_seconds":600}`)
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", status, body)
	}
	created := decode[models.Auction](t, body)

	status, body = env.do(t, http.MethodPost, "/v1/auctions/"+created.Id+"/bids", "alice", `{"amount":"1.3"}`)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 for bid, got %d: %s", status, body)
	}
	updated := decode[models.Auction](t, body)
	if updated.HighestBid == nil || updated.HighestBid.Amount != models.MustNanos("1.3") {
		t.Errorf("Expected highest bid 1.3, got %+v", updated.HighestBid)
	}
	if !strings.Contains(string(body), `"amount":"1.3"`) {
		t.Errorf("Expected decimal string amount in %s", body)
	}

	tests := []struct {
		name   string
		method string
		path   string
		player string
		body   any
		want   int
	}{
		{name: "bid too low", method: http.MethodPost, path: "/v1/auctions/" + created.Id + "/bids", player: "bob", body: `{"amount":"1.3"}`, want: http.StatusUnprocessableEntity},
		{name: "self bid", method: http.MethodPost, path: "/v1/auctions/" + created.Id + "/bids", player: "seller", body: `{"amount":"2"}`, want: http.StatusUnprocessableEntity},
		{name: "unfunded bid", method: http.MethodPost, path: "/v1/auctions/" + created.Id + "/bids", player: "bob", body: `{"amount":"2"}`, want: http.StatusUnprocessableEntity},
		{name: "cancel by stranger", method: http.MethodDelete, path: "/v1/auctions/" + created.Id, player: "alice", want: http.StatusForbidden},
		{name: "cancel with bids", method: http.MethodDelete, path: "/v1/auctions/" + created.Id, player: "seller", want: http.StatusConflict},
		{name: "unknown auction", method: http.MethodPost, path: "/v1/auctions/nope/bids", player: "alice", body: `{"amount":"2"}`, want: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPost, path: "/v1/auctions", player: "seller", body: `{"goods_amount":`, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/v1/auctions", player: "seller", body: `{"goods":100}`, want: http.StatusBadRequest},
		{name: "duration overflows", method: http.MethodPost, path: "/v1/auctions", player: "seller", body: `{"goods_amount":100,"start_price":"1","duration_seconds":18446744074}`, want: http.StatusUnprocessableEntity},
		{name: "duration above maximum", method: http.MethodPost, path: "/v1/auctions", player: "seller", body: `{"goods_amount":100,"start_price":"1","duration_seconds":691200}`, want: http.StatusUnprocessableEntity},
		{name: "lot too small", method: http.MethodPost, path: "/v1/auctions", player: "seller", body: `{"goods_amount":5,"start_price":"1"}`, want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.player, tt.body)
			if status != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, status, body)
			}
		})
	}

	status, body = env.do(t, http.MethodGet, "/v1/me/balances", "alice", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	balances := decode[models.Balances](t, body)
	if balances.Currency != models.MustNanos("1.7") {
		t.Errorf("Expected 1.7 after escrow, got %s", balances.Currency)
	}

	status, body = env.do(t, http.MethodGet, "/v1/auctions", "", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if list := decode[[]models.Auction](t, body); len(list) != 1 {
		t.Errorf("Expected 1 open auction, got %d", len(list))
	}

	if status, _ := env.do(t, http.MethodGet, "/v1/auctions/missing", "", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown auction, got %d", status)
	}
}

func TestListingFlow(t *testing.T) {
	env := setupServer(t)
	dbtest.Fund(t, env.db, "seller", models.FieldGoods, 200)
	dbtest.Fund(t, env.db, "buyer", models.FieldCurrency, int64(models.MustNanos("5")))

	status, body := env.do(t, http.MethodPost, "/v1/listings", "seller", map[string]any{"goods_amount": 150, "price": "2"})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", status, body)
	}
	listing := decode[models.Listing](t, body)

	status, body = env.do(t, http.MethodPost, "/v1/listings/"+listing.Id+"/purchase", "buyer", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", status, body)
	}
	purchase := decode[models.Purchase](t, body)
	if purchase.Fee != models.MustNanos("0.1") || purchase.SellerReceive != models.MustNanos("1.9") {
		t.Errorf("Unexpected purchase split %+v", purchase)
	}

	if status, _ := env.do(t, http.MethodPost, "/v1/listings/"+listing.Id+"/purchase", "buyer", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 on second purchase, got %d", status)
	}

	status, body = env.do(t, http.MethodGet, "/v1/me/balances", "buyer", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	balances := decode[models.Balances](t, body)
	if balances.Goods != 150 || balances.Currency != models.MustNanos("3") {
		t.Errorf("Unexpected buyer balances %+v", balances)
	}

	status, body = env.do(t, http.MethodGet, "/v1/me/ledger?asset=goods", "buyer", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if entries := decode[[]models.LedgerEntry](t, body); len(entries) != 1 {
		t.Errorf("Expected 1 goods entry, got %d", len(entries))
	}

	if status, _ := env.do(t, http.MethodGet, "/v1/me/ledger?asset=gems", "buyer", nil); status != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for unknown asset, got %d", status)
	}
}

func TestWithdrawals(t *testing.T) {
	env := setupServer(t)
	dbtest.Fund(t, env.db, "alice", models.FieldCurrency, int64(models.MustNanos("10")))

	status, body := env.do(t, http.MethodPost, "/v1/me/withdrawals", "alice",
		`{"amount":"2","destination_address":"EQalice-external-wallet"}`)
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", status, body)
	}
	request := decode[models.WithdrawRequest](t, body)
	if request.Total != models.MustNanos("2.1") || request.Status != models.WithdrawPending {
		t.Errorf("Unexpected request %+v", request)
	}

	status, _ = env.do(t, http.MethodPost, "/v1/me/withdrawals", "alice",
		`{"amount":"100","destination_address":"EQalice-external-wallet"}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for insufficient funds, got %d", status)
	}

	status, body = env.do(t, http.MethodGet, "/v1/me/withdrawals", "alice", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if list := decode[[]models.WithdrawRequest](t, body); len(list) != 1 {
		t.Errorf("Expected 1 withdrawal, got %d", len(list))
	}
}

func TestDepositInstructions(t *testing.T) {
	env := setupServer(t)

	status, body := env.do(t, http.MethodGet, "/v1/me/deposit?amount=1.5", "alice smith", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", status, body)
	}
	resp := decode[depositInstructions](t, body)
	want := "ton://transfer/EQproject-wallet?amount=1500000000&text=alice%20smith"
	if resp.Link != want {
		t.Errorf("Expected link %s, got %s", want, resp.Link)
	}
	if resp.Memo != "alice smith" {
		t.Errorf("Expected memo to be the player id, got %q", resp.Memo)
	}

	if status, _ := env.do(t, http.MethodGet, "/v1/me/deposit?amount=-1", "alice", nil); status != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for negative amount, got %d", status)
	}

	status, body = env.do(t, http.MethodGet, "/v1/me/deposits", "alice", nil)
	if status != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("Expected empty deposit list, got %d %s", status, body)
	}
}
