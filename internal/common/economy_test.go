package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "economy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write economy file: %v", err)
	}
	return path
}

func TestLoadEconomyParams_MissingFileUsesDefaults(t *testing.T) {
	params, err := LoadEconomyParams(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadEconomyParams failed: %v", err)
	}
	defaults := models.DefaultEconomyParams()
	if !params.FeeRate.Equal(defaults.FeeRate) || params.MinBidIncrement != defaults.MinBidIncrement {
		t.Errorf("Expected defaults, got %+v", params)
	}
}

func TestLoadEconomyParams_Overrides(t *testing.T) {
	path := writeFile(t, `
fee_rate: "0.1"
min_bid_increment: "0.25"
min_lot_size: 10
default_auction_duration: 30m
fee_account_id: treasury
`)

	params, err := LoadEconomyParams(path)
	if err != nil {
		t.Fatalf("LoadEconomyParams failed: %v", err)
	}
	if params.FeeRate.String() != "0.1" {
		t.Errorf("Expected fee rate 0.1, got %s", params.FeeRate)
	}
	if params.MinBidIncrement != models.MustNanos("0.25") {
		t.Errorf("Expected increment 0.25, got %s", params.MinBidIncrement)
	}
	if params.MinLotSize != 10 || params.DefaultAuctionDuration != 30*time.Minute {
		t.Errorf("Unexpected lot size or duration %+v", params)
	}
	if params.FeeAccountId != "treasury" {
		t.Errorf("Expected fee account treasury, got %q", params.FeeAccountId)
	}
	if !params.WithdrawFeeRate.Equal(models.DefaultEconomyParams().WithdrawFeeRate) {
		t.Errorf("Expected default withdraw fee rate, got %s", params.WithdrawFeeRate)
	}
}

func TestLoadEconomyParams_Invalid(t *testing.T) {
	tests := map[string]string{
		"fee rate of one": `fee_rate: "1"`,
		"bad decimal":     `fee_rate: "five percent"`,
		"bad duration":    `max_auction_duration: forever`,
		"unknown key":     `fee: "0.05"`,
		"negative lot":    `min_lot_size: -1`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadEconomyParams(writeFile(t, content)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
