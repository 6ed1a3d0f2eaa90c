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
	"net/http"

	"github.com/Friday56/Goblin-miner/internal/models"
)

type withdrawalRequest struct {
	Amount             models.Nanos `json:"amount"`
	DestinationAddress string       `json:"destination_address"`
}

// handleRequestWithdrawal handles POST /v1/me/withdrawals
func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	request, err := s.wallet.RequestWithdrawal(r.Context(), playerFrom(r.Context()), req.Amount, req.DestinationAddress)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// handleListWithdrawals handles GET /v1/me/withdrawals
func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	requests, err := s.wallet.ListWithdrawals(r.Context(), playerFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if requests == nil {
		requests = []models.WithdrawRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}
