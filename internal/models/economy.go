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

package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EconomyParams are the platform constants shared by the trading engines.
type EconomyParams struct {
	FeeRate                decimal.Decimal
	WithdrawFeeRate        decimal.Decimal
	MinBidIncrement        Nanos
	MinLotSize             int64
	DefaultAuctionDuration time.Duration
	MaxAuctionDuration     time.Duration
	MinWithdrawAddressLen  int
	// FeeAccountId receives platform fees. Empty means fees leave the system.
	FeeAccountId string
}

func DefaultEconomyParams() EconomyParams {
	return EconomyParams{
		FeeRate:                decimal.RequireFromString("0.05"),
		WithdrawFeeRate:        decimal.RequireFromString("0.05"),
		MinBidIncrement:        100_000_000,
		MinLotSize:             100,
		DefaultAuctionDuration: 60 * time.Minute,
		MaxAuctionDuration:     7 * 24 * time.Hour,
		MinWithdrawAddressLen:  10,
	}
}

// SplitFee returns the platform fee and the remainder paid to the seller.
func (p EconomyParams) SplitFee(amount Nanos) (fee Nanos, sellerReceive Nanos) {
	fee = amount.MulRate(p.FeeRate)
	return fee, amount - fee
}

func (p EconomyParams) Validate() error {
	one := decimal.NewFromInt(1)
	if p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("fee rate must be in [0, 1), got %s", p.FeeRate)
	}
	if p.WithdrawFeeRate.IsNegative() || p.WithdrawFeeRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("withdraw fee rate must be in [0, 1), got %s", p.WithdrawFeeRate)
	}
	if p.MinBidIncrement <= 0 {
		return fmt.Errorf("min bid increment must be positive, got %s", p.MinBidIncrement)
	}
	if p.MinLotSize <= 0 {
		return fmt.Errorf("min lot size must be positive, got %d", p.MinLotSize)
	}
	if p.DefaultAuctionDuration <= 0 || p.MaxAuctionDuration < p.DefaultAuctionDuration {
		return fmt.Errorf("auction durations must satisfy 0 < default (%v) <= max (%v)", p.DefaultAuctionDuration, p.MaxAuctionDuration)
	}
	if p.MinWithdrawAddressLen < 0 {
		return fmt.Errorf("min withdraw address length cannot be negative, got %d", p.MinWithdrawAddressLen)
	}
	return nil
}
