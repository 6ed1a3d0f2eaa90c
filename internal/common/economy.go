package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// EconomyFile mirrors economy.yaml. Empty fields keep their defaults.
type EconomyFile struct {
	FeeRate                string `yaml:"fee_rate"`
	WithdrawFeeRate        string `yaml:"withdraw_fee_rate"`
	MinBidIncrement        string `yaml:"min_bid_increment"`
	MinLotSize             *int64 `yaml:"min_lot_size"`
	DefaultAuctionDuration string `yaml:"default_auction_duration"`
	MaxAuctionDuration     string `yaml:"max_auction_duration"`
	MinWithdrawAddressLen  *int   `yaml:"min_withdraw_address_len"`
	FeeAccountId           string `yaml:"fee_account_id"`
}

func resolvePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, file), nil
}

// LoadEconomyParams reads economy parameters from a YAML file. A missing file
// yields the defaults.
func LoadEconomyParams(economyFile string) (models.EconomyParams, error) {
	params := models.DefaultEconomyParams()
	if economyFile == "" {
		return params, nil
	}

	path, err := resolvePath(economyFile)
	if err != nil {
		return params, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Info("Economy file not found, using defaults", zap.String("file", economyFile))
		return params, nil
	}
	if err != nil {
		return params, fmt.Errorf("unable to read %s: %w", economyFile, err)
	}

	var file EconomyFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return params, fmt.Errorf("unable to parse %s: %w", economyFile, err)
	}

	if err := file.apply(&params); err != nil {
		return params, fmt.Errorf("invalid %s: %w", economyFile, err)
	}
	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("invalid %s: %w", economyFile, err)
	}

	zap.L().Info("Loaded economy parameters",
		zap.String("file", economyFile),
		zap.String("fee_rate", params.FeeRate.String()),
		zap.String("withdraw_fee_rate", params.WithdrawFeeRate.String()),
		zap.String("min_bid_increment", params.MinBidIncrement.String()),
		zap.Int64("min_lot_size", params.MinLotSize),
		zap.String("fee_account_id", params.FeeAccountId))

	return params, nil
}

func (f EconomyFile) apply(params *models.EconomyParams) error {
	if f.FeeRate != "" {
		rate, err := decimal.NewFromString(strings.TrimSpace(f.FeeRate))
		if err != nil {
			return fmt.Errorf("fee_rate: %w", err)
		}
		params.FeeRate = rate
	}
	if f.WithdrawFeeRate != "" {
		rate, err := decimal.NewFromString(strings.TrimSpace(f.WithdrawFeeRate))
		if err != nil {
			return fmt.Errorf("withdraw_fee_rate: %w", err)
		}
		params.WithdrawFeeRate = rate
	}
	if f.MinBidIncrement != "" {
		increment, err := models.ParseNanos(f.MinBidIncrement)
		if err != nil {
			return fmt.Errorf("min_bid_increment: %w", err)
		}
		params.MinBidIncrement = increment
	}
	if f.MinLotSize != nil {
		params.MinLotSize = *f.MinLotSize
	}
	if f.DefaultAuctionDuration != "" {
		duration, err := time.ParseDuration(f.DefaultAuctionDuration)
		if err != nil {
			return fmt.Errorf("default_auction_duration: %w", err)
		}
		params.DefaultAuctionDuration = duration
	}
	if f.MaxAuctionDuration != "" {
		duration, err := time.ParseDuration(f.MaxAuctionDuration)
		if err != nil {
			return fmt.Errorf("max_auction_duration: %w", err)
		}
		params.MaxAuctionDuration = duration
	}
	if f.MinWithdrawAddressLen != nil {
		params.MinWithdrawAddressLen = *f.MinWithdrawAddressLen
	}
	params.FeeAccountId = strings.TrimSpace(f.FeeAccountId)
	return nil
}
