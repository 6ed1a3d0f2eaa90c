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
	"strconv"
	"strings"
	"time"

	"github.com/Friday56/Goblin-miner/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PlayerHeader carries the caller's player id. It doubles as the deposit memo.
const PlayerHeader = "X-Player-Id"

type playerKey struct{}

func playerFrom(ctx context.Context) string {
	playerId, _ := ctx.Value(playerKey{}).(string)
	return playerId
}

// requirePlayer resolves the caller and makes sure it is a registered player.
func (s *Server) requirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerId := strings.TrimSpace(r.Header.Get(PlayerHeader))
		if playerId == "" {
			writeError(w, http.StatusUnauthorized, PlayerHeader+" header is required")
			return
		}

		if err := s.store.EnsurePlayer(r.Context(), playerId); err != nil {
			writeDomainError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), playerKey{}, playerId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
