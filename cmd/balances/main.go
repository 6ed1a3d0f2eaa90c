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

	"github.com/Friday56/Goblin-miner/internal/common"
	"github.com/Friday56/Goblin-miner/internal/config"
	"github.com/Friday56/Goblin-miner/internal/database"
	"github.com/Friday56/Goblin-miner/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalPlayers       int
	totalBalances      int
	playersWithBalance int
	mismatches         int
}

func formatEntryId(entryId string) string {
	if entryId == "" {
		return "none"
	}
	if len(entryId) > 8 {
		return entryId[:8] + "..."
	}
	return entryId
}

func formatAmount(balance models.AccountBalance) string {
	if balance.Asset == models.FieldCurrency {
		return common.FormatTON(models.Nanos(balance.Balance))
	}
	return fmt.Sprintf("%d", balance.Balance)
}

func printBalance(balance models.AccountBalance, isLast bool, verified string) {
	symbol := common.BoxPrefix(isLast)

	fmt.Printf("%s %-10s: %22s (v%d, last_entry: %s, updated: %s)%s\n",
		symbol,
		balance.Asset,
		formatAmount(balance),
		balance.Version,
		formatEntryId(balance.LastEntryId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"),
		verified)
}

func printPlayerHeader(player models.Player, balanceCount int) {
	fmt.Printf("\n┌─ Player: %s\n", player.Name)
	fmt.Printf("│  ID: %s\n", player.Id)
	fmt.Printf("│  Assets: %d\n", balanceCount)
	common.PrintBoxSeparator(78)
}

func processPlayer(ctx context.Context, player models.Player, dbService *database.Service, verify bool, logger *zap.Logger) (int, int, error) {
	balances, err := dbService.GetAllBalances(ctx, player.Id)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get balances: %w", err)
	}

	if len(balances) == 0 {
		return 0, 0, nil
	}

	printPlayerHeader(player, len(balances))

	mismatches := 0
	for i, balance := range balances {
		verified := ""
		if verify {
			if err := dbService.ReconcileBalance(ctx, player.Id, balance.Asset); err != nil {
				verified = " ✗ " + err.Error()
				mismatches++
				logger.Warn("Balance does not match ledger",
					zap.String("player_id", player.Id),
					zap.String("asset", string(balance.Asset)),
					zap.Error(err))
			} else {
				verified = " ✓"
			}
		}
		printBalance(balance, i == len(balances)-1, verified)
	}

	return len(balances), mismatches, nil
}

func processPlayersAndGenerateReport(ctx context.Context, players []models.Player, dbService *database.Service, verify bool, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, player := range players {
		stats.totalPlayers++

		balanceCount, mismatches, err := processPlayer(ctx, player, dbService, verify, logger)
		if err != nil {
			logger.Error("Failed to process player",
				zap.String("player_id", player.Id),
				zap.Error(err))
			continue
		}

		stats.mismatches += mismatches
		if balanceCount > 0 {
			stats.playersWithBalance++
			stats.totalBalances += balanceCount
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	playerFlag := flag.String("player", "", "Filter by specific player id (optional)")
	verifyFlag := flag.Bool("verify", false, "Check every balance against its ledger entries")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	players, err := common.InitializePlayers(ctx, dbService, *playerFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize players", zap.Error(err))
	}

	common.PrintHeader("PLAYER BALANCE REPORT", common.WideWidth)

	stats := processPlayersAndGenerateReport(ctx, players, dbService, *verifyFlag, logger)

	summary := fmt.Sprintf("SUMMARY: %d players with balances (%d total balances across %d players queried)",
		stats.playersWithBalance, stats.totalBalances, stats.totalPlayers)
	if *verifyFlag {
		summary += fmt.Sprintf(", %d ledger mismatches", stats.mismatches)
	}
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Balance query completed",
		zap.Int("players_queried", stats.totalPlayers),
		zap.Int("players_with_balances", stats.playersWithBalance),
		zap.Int("total_balances", stats.totalBalances),
		zap.Int("mismatches", stats.mismatches))
}
