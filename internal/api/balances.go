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
	"strconv"

	"github.com/Friday56/Goblin-miner/internal/models"
)

// handleGetBalances handles GET /v1/me/balances
func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.store.GetBalances(r.Context(), playerFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// handleGetLedger handles GET /v1/me/ledger?asset=currency&limit=20&offset=0
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	field := models.FieldCurrency
	if raw := query.Get("asset"); raw != "" {
		field = models.Field(raw)
		if !field.Valid() {
			writeError(w, http.StatusUnprocessableEntity, "asset must be currency or goods")
			return
		}
	}

	limit, offset := 20, 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = parsed
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.store.GetLedgerEntries(r.Context(), playerFrom(r.Context()), field, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
