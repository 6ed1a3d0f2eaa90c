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

// DepositRecord marks an external transaction as credited. TxHash is unique forever.
type DepositRecord struct {
	TxHash     string    `json:"tx_hash"`
	UserId     string    `json:"user_id"`
	Amount     Nanos     `json:"amount"`
	CreditedAt time.Time `json:"credited_at"`
}

type WithdrawStatus string

const (
	WithdrawPending   WithdrawStatus = "pending"
	WithdrawCompleted WithdrawStatus = "completed"
	WithdrawRejected  WithdrawStatus = "rejected"
)

// WithdrawRequest is a binding hold: Total is debited when the request is created.
type WithdrawRequest struct {
	Id                 string         `json:"id"`
	UserId             string         `json:"user_id"`
	Amount             Nanos          `json:"amount"`
	Fee                Nanos          `json:"fee"`
	Total              Nanos          `json:"total"`
	DestinationAddress string         `json:"destination_address"`
	Status             WithdrawStatus `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
