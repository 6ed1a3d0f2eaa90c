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

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type AuctionService interface {
	CreateAuction(ctx context.Context, sellerId string, goods int64, startPrice models.Nanos, duration time.Duration) (*models.Auction, error)
	PlaceBid(ctx context.Context, auctionId, bidderId string, amount models.Nanos) (*models.Auction, error)
	CancelAuction(ctx context.Context, auctionId, callerId string) error
	GetAuction(ctx context.Context, auctionId string) (*models.Auction, error)
	ListAuctions(ctx context.Context) ([]models.Auction, error)
}

type MarketService interface {
	CreateListing(ctx context.Context, sellerId string, goods int64, price models.Nanos) (*models.Listing, error)
	Buy(ctx context.Context, listingId, buyerId string) (*models.Purchase, error)
	CancelListing(ctx context.Context, listingId, callerId string) error
	GetListing(ctx context.Context, listingId string) (*models.Listing, error)
	ListListings(ctx context.Context) ([]models.Listing, error)
}

type WalletService interface {
	RequestWithdrawal(ctx context.Context, userId string, amount models.Nanos, destination string) (*models.WithdrawRequest, error)
	ListWithdrawals(ctx context.Context, userId string) ([]models.WithdrawRequest, error)
}

// ServerConfig contains the services the HTTP API exposes
type ServerConfig struct {
	Store          store.LedgerStore
	Auctions       AuctionService
	Market         MarketService
	Wallet         WalletService
	DepositAddress string
	RequestTimeout time.Duration
}

// Server is the economy HTTP API.
type Server struct {
	store          store.LedgerStore
	auctions       AuctionService
	market         MarketService
	wallet         WalletService
	depositAddress string
	requestTimeout time.Duration
}

func NewServer(cfg ServerConfig) *Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		store:          cfg.Store,
		auctions:       cfg.Auctions,
		market:         cfg.Market,
		wallet:         cfg.Wallet,
		depositAddress: cfg.DepositAddress,
		requestTimeout: timeout,
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/auctions", s.handleListAuctions)
		r.Get("/auctions/{id}", s.handleGetAuction)
		r.Get("/listings", s.handleListListings)
		r.Get("/listings/{id}", s.handleGetListing)

		r.Group(func(r chi.Router) {
			r.Use(s.requirePlayer)

			r.Post("/auctions", s.handleCreateAuction)
			r.Delete("/auctions/{id}", s.handleCancelAuction)
			r.Post("/auctions/{id}/bids", s.handlePlaceBid)

			r.Post("/listings", s.handleCreateListing)
			r.Delete("/listings/{id}", s.handleCancelListing)
			r.Post("/listings/{id}/purchase", s.handleBuy)

			r.Get("/me/balances", s.handleGetBalances)
			r.Get("/me/ledger", s.handleGetLedger)
			r.Get("/me/deposit", s.handleDepositInstructions)
			r.Get("/me/deposits", s.handleListDeposits)
			r.Get("/me/withdrawals", s.handleListWithdrawals)
			r.Post("/me/withdrawals", s.handleRequestWithdrawal)
		})
	})

	return r
}

// NewHTTPServer wraps handler in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetPlayers(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database health check failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
