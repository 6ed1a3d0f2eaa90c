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
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Friday56/Goblin-miner/internal/api"
	"github.com/Friday56/Goblin-miner/internal/common"
	"github.com/Friday56/Goblin-miner/internal/config"
	"github.com/Friday56/Goblin-miner/internal/listener"
	"github.com/Friday56/Goblin-miner/internal/notify"
	"github.com/Friday56/Goblin-miner/internal/settlement"
	"github.com/Friday56/Goblin-miner/internal/toncenter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting Goblin Miner economy")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	g, gctx := errgroup.WithContext(ctx)

	scheduler := settlement.NewScheduler(settlement.SchedulerConfig{
		Finalizer:    services.Auctions,
		InitialDelay: cfg.Settlement.InitialDelay,
		Interval:     cfg.Settlement.Interval,
	})
	if err := scheduler.Start(gctx); err != nil {
		zap.L().Fatal("Failed to start settlement scheduler", zap.Error(err))
	}

	var deposits *listener.DepositListener
	if cfg.Listener.Enabled {
		client, err := toncenter.NewClient(toncenter.Config{
			BaseURL:   cfg.Listener.BaseURL,
			APIKey:    cfg.Listener.APIKey,
			PageLimit: cfg.Listener.PageLimit,
			Timeout:   cfg.Listener.RequestTimeout,
		})
		if err != nil {
			zap.L().Fatal("Failed to create toncenter client", zap.Error(err))
		}

		deposits = listener.NewDepositListener(listener.DepositListenerConfig{
			Feed:            client,
			DbService:       services.DbService,
			Notifier:        notify.LogNotifier{},
			WalletAddress:   cfg.Listener.WalletAddress,
			MaxPages:        cfg.Listener.MaxPages,
			RecoveryPages:   cfg.Listener.RecoveryPages,
			InitialDelay:    cfg.Listener.InitialDelay,
			PollingInterval: cfg.Listener.PollingInterval,
			CleanupInterval: cfg.Listener.CleanupInterval,
			CacheRetention:  cfg.Listener.CacheRetention,
		})
		if err := deposits.Start(gctx); err != nil {
			zap.L().Fatal("Failed to start deposit listener", zap.Error(err))
		}
	} else {
		zap.L().Warn("Deposit listener disabled (set WALLET_ADDRESS to enable)")
	}

	apiServer := api.NewServer(api.ServerConfig{
		Store:          services.DbService,
		Auctions:       services.Auctions,
		Market:         services.Market,
		Wallet:         services.Wallet,
		DepositAddress: cfg.Listener.WalletAddress,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	httpServer := api.NewHTTPServer(cfg.Server.Addr, apiServer.Handler())

	g.Go(func() error {
		zap.L().Info("HTTP API listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			zap.L().Info("Shutdown signal received", zap.String("signal", sig.String()))
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		err := httpServer.Shutdown(shutdownCtx)
		scheduler.Stop()
		if deposits != nil {
			deposits.Stop()
		}
		return err
	})

	zap.L().Info("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		zap.L().Error("Economy stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Economy stopped gracefully")
}
