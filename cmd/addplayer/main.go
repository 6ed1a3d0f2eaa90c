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

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/Friday56/Goblin-miner/internal/common"
	"github.com/Friday56/Goblin-miner/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func validateName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	idFlag := flag.String("id", "", "Player id, also used as the deposit memo (default: new UUID)")
	nameFlag := flag.String("name", "", "Display name (default: the player id)")
	flag.Parse()

	playerId := strings.TrimSpace(*idFlag)
	if playerId == "" {
		playerId = uuid.New().String()
	}
	name := strings.TrimSpace(*nameFlag)

	if err := validateName(name); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	exists, err := dbService.PlayerExists(ctx, playerId)
	if err != nil {
		zap.L().Fatal("Failed to check player", zap.Error(err))
	}
	if exists {
		zap.L().Fatal("Player already exists", zap.String("id", playerId))
	}

	player, err := dbService.RegisterPlayer(ctx, playerId, name)
	if err != nil {
		zap.L().Fatal("Failed to register player", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("PLAYER CREATED", common.DefaultWidth)
	common.PrintField("ID", player.Id)
	common.PrintField("Name", player.Name)
	if cfg.Listener.WalletAddress != "" {
		fmt.Printf("Deposit to %s with comment %q\n", cfg.Listener.WalletAddress, player.Id)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("Player created successfully", zap.String("id", player.Id))
}
