package models

import "time"

// ChainTransaction is an incoming transfer observed on the payment rail.
type ChainTransaction struct {
	Hash        string    `json:"hash"`
	Lt          string    `json:"lt"`
	Source      string    `json:"source"`
	Memo        string    `json:"memo"`
	AmountNanos int64     `json:"amount_nanos"`
	Time        time.Time `json:"time"`
}
