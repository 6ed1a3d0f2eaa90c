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
	"net/url"
	"strconv"
	"strings"

	"github.com/Friday56/Goblin-miner/internal/models"
)

type depositInstructions struct {
	Address string        `json:"address"`
	Memo    string        `json:"memo"`
	Amount  *models.Nanos `json:"amount,omitempty"`
	Link    string        `json:"link"`
}

// transferLink builds a ton:// deep link with the player id as the comment.
func transferLink(address, memo string, amount models.Nanos) string {
	link := "ton://transfer/" + address
	var params []string
	if amount > 0 {
		params = append(params, "amount="+strconv.FormatInt(int64(amount), 10))
	}
	params = append(params, "text="+strings.ReplaceAll(url.QueryEscape(memo), "+", "%20"))
	return link + "?" + strings.Join(params, "&")
}

// handleDepositInstructions handles GET /v1/me/deposit?amount=1.5
func (s *Server) handleDepositInstructions(w http.ResponseWriter, r *http.Request) {
	if s.depositAddress == "" {
		writeError(w, http.StatusServiceUnavailable, "deposits are not configured")
		return
	}

	playerId := playerFrom(r.Context())
	resp := depositInstructions{
		Address: s.depositAddress,
		Memo:    playerId,
	}

	var amount models.Nanos
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := models.ParseNanos(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "amount must be a positive decimal")
			return
		}
		amount = parsed
		resp.Amount = &amount
	}

	resp.Link = transferLink(s.depositAddress, playerId, amount)
	writeJSON(w, http.StatusOK, resp)
}

// handleListDeposits handles GET /v1/me/deposits
func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := s.store.GetDeposits(r.Context(), playerFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if deposits == nil {
		deposits = []models.DepositRecord{}
	}
	writeJSON(w, http.StatusOK, deposits)
}
