package models

import "time"

// Config represents the application configuration
type Config struct {
	Database    DatabaseConfig
	Listener    ListenerConfig
	Settlement  SettlementConfig
	Server      ServerConfig
	EconomyFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
}

// ListenerConfig holds deposit listener settings
type ListenerConfig struct {
	Enabled         bool
	BaseURL         string
	APIKey          string
	WalletAddress   string
	PageLimit       int
	MaxPages        int
	RecoveryPages   int
	InitialDelay    time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
	CacheRetention  time.Duration
	RequestTimeout  time.Duration
}

// SettlementConfig holds auction settlement scheduler settings
type SettlementConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}
