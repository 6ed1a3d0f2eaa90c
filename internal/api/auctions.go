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
	"math"
	"net/http"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"

	"github.com/go-chi/chi/v5"
)

type createAuctionRequest struct {
	GoodsAmount     int64        `json:"goods_amount"`
	StartPrice      models.Nanos `json:"start_price"`
	DurationSeconds int64        `json:"duration_seconds"`
}

// maxDurationSeconds is the largest value that converts to a time.Duration without overflow.
const maxDurationSeconds = int64(math.MaxInt64 / time.Second)

type placeBidRequest struct {
	Amount models.Nanos `json:"amount"`
}

// handleListAuctions handles GET /v1/auctions
func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := s.auctions.ListAuctions(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}
	writeJSON(w, http.StatusOK, auctions)
}

// handleGetAuction handles GET /v1/auctions/{id}
func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := s.auctions.GetAuction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

// handleCreateAuction handles POST /v1/auctions
func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, http.StatusUnprocessableEntity, "duration_seconds cannot be negative")
		return
	}
	if req.DurationSeconds > maxDurationSeconds {
		writeError(w, http.StatusUnprocessableEntity, "duration_seconds is out of range")
		return
	}

	auction, err := s.auctions.CreateAuction(r.Context(), playerFrom(r.Context()),
		req.GoodsAmount, req.StartPrice, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, auction)
}

// handleCancelAuction handles DELETE /v1/auctions/{id}
func (s *Server) handleCancelAuction(w http.ResponseWriter, r *http.Request) {
	auctionId := chi.URLParam(r, "id")
	if err := s.auctions.CancelAuction(r.Context(), auctionId, playerFrom(r.Context())); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": auctionId, "status": "cancelled"})
}

// handlePlaceBid handles POST /v1/auctions/{id}/bids
func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if !decodeBody(w, r, &req) {
		return
	}

	auction, err := s.auctions.PlaceBid(r.Context(), chi.URLParam(r, "id"), playerFrom(r.Context()), req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}
