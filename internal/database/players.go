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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

func (s *Service) GetPlayers(ctx context.Context) ([]models.Player, error) {
	zap.L().Debug("Querying players")

	rows, err := s.db.QueryContext(ctx, queryGetPlayers)
	if err != nil {
		zap.L().Error("Failed to query players", zap.Error(err))
		return nil, fmt.Errorf("unable to query players: %w", err)
	}
	defer closeRows(rows)

	var players []models.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			zap.L().Error("Failed to scan player row", zap.Error(err))
			return nil, err
		}
		players = append(players, *player)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during player row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating player rows: %w", err)
	}

	zap.L().Debug("Retrieved players", zap.Int("count", len(players)))
	return players, nil
}

// RegisterPlayer records playerId as a known account. Registering an existing id
// returns the stored player unchanged.
func (s *Service) RegisterPlayer(ctx context.Context, playerId, name string) (*models.Player, error) {
	playerId = strings.TrimSpace(playerId)
	if playerId == "" {
		return nil, fmt.Errorf("%w: player id cannot be empty", store.ErrInvalidInput)
	}
	if name == "" {
		name = playerId
	}

	result, err := s.db.ExecContext(ctx, queryInsertPlayer, playerId, name, toMillis(time.Now()))
	if err != nil {
		zap.L().Error("Failed to insert player", zap.String("id", playerId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert player: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		zap.L().Info("Player registered", zap.String("id", playerId), zap.String("name", name))
	}

	player, err := scanPlayer(s.db.QueryRowContext(ctx, queryGetPlayer, playerId))
	if err != nil {
		return nil, err
	}
	return player, nil
}

// EnsurePlayer registers playerId if it is not known yet.
func (s *Service) EnsurePlayer(ctx context.Context, playerId string) error {
	_, err := s.RegisterPlayer(ctx, playerId, "")
	return err
}

func (s *Service) PlayerExists(ctx context.Context, playerId string) (bool, error) {
	return playerExists(ctx, s.db, playerId)
}

func playerExists(ctx context.Context, q queryer, playerId string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, queryPlayerExists, playerId).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unable to look up player: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var player models.Player
	var createdAt int64
	if err := row.Scan(&player.Id, &player.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to scan player row: %w", err)
	}
	player.CreatedAt = fromMillis(createdAt)
	return &player, nil
}
