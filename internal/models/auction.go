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

import "time"

// Bid is the currently escrowed highest bid of an auction.
type Bid struct {
	Id       string    `json:"id"`
	Amount   Nanos     `json:"amount"`
	BidderId string    `json:"bidder_id"`
	Time     time.Time `json:"time"`
}

// Auction escrows GoodsAmount from the seller until it is cancelled or finalized.
type Auction struct {
	Id          string    `json:"id"`
	SellerId    string    `json:"seller_id"`
	GoodsAmount int64     `json:"goods_amount"`
	StartPrice  Nanos     `json:"start_price"`
	HighestBid  *Bid      `json:"highest_bid,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	EndTime     time.Time `json:"end_time"`
	Version     int64     `json:"-"`
}

// CurrentPrice is the highest bid amount, or the start price when there are no bids.
func (a *Auction) CurrentPrice() Nanos {
	if a.HighestBid != nil {
		return a.HighestBid.Amount
	}
	return a.StartPrice
}

func (a *Auction) HasBids() bool {
	return a.HighestBid != nil
}

// Expired reports whether bidding is closed at now.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

type SettlementOutcome string

const (
	OutcomeSold   SettlementOutcome = "sold"
	OutcomeUnsold SettlementOutcome = "unsold"
)

// Settlement describes how an auction was finalized.
type Settlement struct {
	AuctionId     string            `json:"auction_id"`
	SellerId      string            `json:"seller_id"`
	WinnerId      string            `json:"winner_id,omitempty"`
	Outcome       SettlementOutcome `json:"outcome"`
	GoodsAmount   int64             `json:"goods_amount"`
	Amount        Nanos             `json:"amount"`
	Fee           Nanos             `json:"fee"`
	SellerReceive Nanos             `json:"seller_receive"`
	SettledAt     time.Time         `json:"settled_at"`
}
