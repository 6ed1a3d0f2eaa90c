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

package common

import (
	"context"
	"fmt"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

// InitializePlayers retrieves players based on an optional id filter.
// If playerFilter is provided, returns just that player.
// If playerFilter is empty, returns all players.
func InitializePlayers(ctx context.Context, dbService store.LedgerStore, playerFilter string, logger *zap.Logger) ([]models.Player, error) {
	if playerFilter != "" {
		logger.Info("Looking up player", zap.String("player_id", playerFilter))
		exists, err := dbService.PlayerExists(ctx, playerFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to look up player: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("player not found: %w", store.ErrNotFound)
		}
	}

	allPlayers, err := dbService.GetPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}

	players := allPlayers
	if playerFilter != "" {
		players = nil
		for _, p := range allPlayers {
			if p.Id == playerFilter {
				players = append(players, p)
			}
		}
	}

	logger.Info("Retrieved players", zap.Int("count", len(players)))
	return players, nil
}
