package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Friday56/Goblin-miner/internal/auction"
	"github.com/Friday56/Goblin-miner/internal/database"
	"github.com/Friday56/Goblin-miner/internal/market"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/notify"
	"github.com/Friday56/Goblin-miner/internal/wallet"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Params    models.EconomyParams
	Auctions  *auction.Engine
	Market    *market.Engine
	Wallet    *wallet.Service
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the ledger and wires the engines on top of it.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	params, err := LoadEconomyParams(cfg.EconomyFile)
	if err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if params.FeeAccountId != "" {
		if err := dbService.EnsurePlayer(ctx, params.FeeAccountId); err != nil {
			dbService.Close()
			return nil, fmt.Errorf("failed to register fee account: %w", err)
		}
	}

	notifier := notify.LogNotifier{}

	return &Services{
		DbService: dbService,
		Params:    params,
		Auctions:  auction.NewEngine(dbService, params, notifier),
		Market:    market.NewEngine(dbService, params, notifier),
		Wallet:    wallet.NewService(dbService, params, notifier),
	}, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
