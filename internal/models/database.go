package models

import (
	"time"
)

// Field names one of the two balances every account holds.
type Field string

const (
	FieldCurrency Field = "currency"
	FieldGoods    Field = "goods"
)

func (f Field) Valid() bool {
	return f == FieldCurrency || f == FieldGoods
}

// Player is a registered account identifier. Deposits are only credited to
// registered players; balances themselves never require registration.
type Player struct {
	Id        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AccountBalance represents current balance state (hot data).
// Balance is in nanos for currency and in units for goods.
type AccountBalance struct {
	Id          string    `db:"id" json:"-"`
	UserId      string    `db:"user_id" json:"user_id"`
	Asset       Field     `db:"asset" json:"asset"`
	Balance     int64     `db:"balance" json:"balance"`
	LastEntryId string    `db:"last_entry_id" json:"-"`
	Version     int64     `db:"version" json:"version"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is an immutable audit row written by every balance adjustment.
type LedgerEntry struct {
	Id            string    `db:"id" json:"id"`
	UserId        string    `db:"user_id" json:"user_id"`
	Asset         Field     `db:"asset" json:"asset"`
	EntryType     string    `db:"entry_type" json:"entry_type"`
	Amount        int64     `db:"amount" json:"amount"`
	BalanceBefore int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	Reference     string    `db:"reference" json:"reference,omitempty"`
	Counterparty  string    `db:"counterparty" json:"counterparty,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Balances is the pair of balances of one account.
type Balances struct {
	UserId   string `json:"user_id"`
	Currency Nanos  `json:"currency"`
	Goods    int64  `json:"goods"`
}
