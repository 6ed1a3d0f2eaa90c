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

package database

const (
	// Player queries
	queryInsertPlayer = `
		INSERT OR IGNORE INTO players (id, name, created_at) VALUES (?, ?, ?)`

	queryGetPlayer = `
		SELECT id, name, created_at
		FROM players
		WHERE id = ?`

	queryGetPlayers = `
		SELECT id, name, created_at
		FROM players
		ORDER BY created_at, id`

	queryPlayerExists = `
		SELECT 1 FROM players WHERE id = ? LIMIT 1`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryGetAllUserBalances = `
		SELECT id, user_id, asset, balance, COALESCE(last_entry_id, ''), version, updated_at
		FROM account_balances
		WHERE user_id = ?
		ORDER BY asset`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(amount), 0) as calculated_balance
		FROM ledger_entries
		WHERE user_id = ? AND asset = ?`

	// Ledger queries
	queryCheckDuplicateReference = `
		SELECT id FROM ledger_entries WHERE reference = ? LIMIT 1`

	queryEnsureAccountBalance = `
		INSERT OR IGNORE INTO account_balances (id, user_id, asset, balance, version, updated_at)
		VALUES (?, ?, ?, 0, 1, ?)`

	queryGetAccountBalance = `
		SELECT balance, version
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (
			id, user_id, asset, entry_type, amount, balance_before, balance_after,
			reference, counterparty, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_entry_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND asset = ? AND version = ?`

	queryGetLedgerEntries = `
		SELECT id, user_id, asset, entry_type, amount, balance_before, balance_after,
		       reference, counterparty, created_at
		FROM ledger_entries
		WHERE user_id = ? AND asset = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	// Auction queries
	auctionColumns = `
		id, seller_id, goods_amount, start_price,
		highest_bid_id, highest_amount, highest_bidder, highest_time,
		created_at, end_time, version`

	queryInsertAuction = `
		INSERT INTO auctions (
			id, seller_id, goods_amount, start_price, created_at, end_time, version
		) VALUES (?, ?, ?, ?, ?, ?, 1)`

	queryGetAuction = `SELECT ` + auctionColumns + `
		FROM auctions
		WHERE id = ?`

	queryListAuctions = `SELECT ` + auctionColumns + `
		FROM auctions
		ORDER BY end_time, id`

	queryListExpiredAuctions = `SELECT ` + auctionColumns + `
		FROM auctions
		WHERE end_time <= ?
		ORDER BY end_time, id`

	queryUpdateAuctionBid = `
		UPDATE auctions
		SET highest_bid_id = ?, highest_amount = ?, highest_bidder = ?, highest_time = ?,
		    version = version + 1
		WHERE id = ? AND version = ?`

	queryDeleteAuction = `
		DELETE FROM auctions WHERE id = ?`

	// Listing queries
	queryInsertListing = `
		INSERT INTO listings (id, seller_id, goods_amount, price, created_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetListing = `
		SELECT id, seller_id, goods_amount, price, created_at
		FROM listings
		WHERE id = ?`

	queryListListings = `
		SELECT id, seller_id, goods_amount, price, created_at
		FROM listings
		ORDER BY created_at DESC, id`

	queryDeleteListing = `
		DELETE FROM listings WHERE id = ?`

	// Deposit queries
	queryInsertDeposit = `
		INSERT INTO deposits (tx_hash, user_id, amount, credited_at) VALUES (?, ?, ?, ?)`

	queryDepositExists = `
		SELECT 1 FROM deposits WHERE tx_hash = ? LIMIT 1`

	queryGetDeposits = `
		SELECT tx_hash, user_id, amount, credited_at
		FROM deposits
		WHERE user_id = ?
		ORDER BY credited_at DESC`

	// Withdrawal queries
	withdrawalColumns = `
		id, user_id, amount, fee, total, destination_address, status, created_at, updated_at`

	queryInsertWithdrawal = `
		INSERT INTO withdraw_requests (` + withdrawalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWithdrawal = `SELECT ` + withdrawalColumns + `
		FROM withdraw_requests
		WHERE id = ?`

	queryListUserWithdrawals = `SELECT ` + withdrawalColumns + `
		FROM withdraw_requests
		WHERE user_id = ?
		ORDER BY created_at DESC`

	queryListWithdrawalsByStatus = `SELECT ` + withdrawalColumns + `
		FROM withdraw_requests
		WHERE status = ?
		ORDER BY created_at`

	queryUpdateWithdrawalStatus = `
		UPDATE withdraw_requests
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`
)
