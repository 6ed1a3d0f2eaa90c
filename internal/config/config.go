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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
)

func Load() (*models.Config, error) {
	var (
		connMaxLifetime, connMaxIdleTime, pingTimeout, retryBackoff     time.Duration
		listenerDelay, pollingInterval, cleanupInterval, cacheRetention time.Duration
		listenerTimeout, settlementDelay, settlementInterval            time.Duration
		serverTimeout, shutdownTimeout                                  time.Duration
	)

	durations := []struct {
		key   string
		value time.Duration
		dst   *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute, &connMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second, &connMaxIdleTime},
		{"DB_PING_TIMEOUT", 5 * time.Second, &pingTimeout},
		{"LEDGER_RETRY_BACKOFF", 10 * time.Millisecond, &retryBackoff},
		{"LISTENER_INITIAL_DELAY", 2 * time.Second, &listenerDelay},
		{"LISTENER_POLLING_INTERVAL", 10 * time.Second, &pollingInterval},
		{"LISTENER_CLEANUP_INTERVAL", 15 * time.Minute, &cleanupInterval},
		{"LISTENER_CACHE_RETENTION", 24 * time.Hour, &cacheRetention},
		{"LISTENER_REQUEST_TIMEOUT", 30 * time.Second, &listenerTimeout},
		{"SETTLEMENT_INITIAL_DELAY", 5 * time.Second, &settlementDelay},
		{"SETTLEMENT_INTERVAL", 15 * time.Second, &settlementInterval},
		{"SERVER_REQUEST_TIMEOUT", 30 * time.Second, &serverTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", 10 * time.Second, &shutdownTimeout},
	}
	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.value)
		if err != nil {
			return nil, err
		}
		if value < 0 {
			return nil, fmt.Errorf("%s cannot be negative, got %v", d.key, value)
		}
		*d.dst = value
	}

	walletAddress := getEnvString("WALLET_ADDRESS", "")

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "economy.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			MaxRetries:      getEnvInt("LEDGER_MAX_RETRIES", 5),
			RetryBackoff:    retryBackoff,
		},
		Listener: models.ListenerConfig{
			Enabled:         getEnvBool("LISTENER_ENABLED", walletAddress != ""),
			BaseURL:         getEnvString("TONCENTER_BASE_URL", "https://toncenter.com/api/v2"),
			APIKey:          getEnvString("TONCENTER_API_KEY", ""),
			WalletAddress:   walletAddress,
			PageLimit:       getEnvInt("LISTENER_PAGE_LIMIT", 50),
			MaxPages:        getEnvInt("LISTENER_MAX_PAGES", 1),
			RecoveryPages:   getEnvInt("LISTENER_RECOVERY_PAGES", 5),
			InitialDelay:    listenerDelay,
			PollingInterval: pollingInterval,
			CleanupInterval: cleanupInterval,
			CacheRetention:  cacheRetention,
			RequestTimeout:  listenerTimeout,
		},
		Settlement: models.SettlementConfig{
			InitialDelay: settlementDelay,
			Interval:     settlementInterval,
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			RequestTimeout:  serverTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		EconomyFile: getEnvString("ECONOMY_FILE", "economy.yaml"),
	}

	if cfg.Listener.Enabled && cfg.Listener.WalletAddress == "" {
		return nil, fmt.Errorf("LISTENER_ENABLED requires WALLET_ADDRESS")
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
