package main

import (
	"context"
	"time"

	"github.com/Friday56/Goblin-miner/internal/common"
	"github.com/Friday56/Goblin-miner/internal/config"
	"github.com/Friday56/Goblin-miner/internal/settlement"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	scheduler := settlement.NewScheduler(settlement.SchedulerConfig{
		Finalizer: services.Auctions,
		Interval:  cfg.Settlement.Interval,
	})

	started := time.Now()
	result, err := scheduler.RunOnce(ctx)
	if err != nil {
		zap.L().Fatal("Settlement pass failed", zap.Error(err))
	}

	common.PrintHeader("SETTLEMENT PASS", common.DefaultWidth)
	common.PrintField("Sold", result.Sold)
	common.PrintField("Unsold", result.Unsold)
	common.PrintField("Failed", result.Failed)
	common.PrintField("Duration", time.Since(started).Round(time.Millisecond))
	common.PrintSeparator("=", common.DefaultWidth)
}
