package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "economy_http_requests_total",
	Help: "Total HTTP requests",
}, []string{"method", "route", "status"})

var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "economy_http_request_duration_seconds",
	Help:    "Request latency",
	Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
}, []string{"method", "route"})

var LedgerRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "economy_ledger_retries_total",
	Help: "Units of work re-run after a write conflict",
})

var BidsAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "economy_bids_accepted_total",
	Help: "Accepted auction bids",
})

// Settlements is labelled by outcome: sold, unsold or failed.
var Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "economy_settlements_total",
	Help: "Auction finalize attempts by outcome",
}, []string{"outcome"})

var Purchases = promauto.NewCounter(prometheus.CounterOpts{
	Name: "economy_purchases_total",
	Help: "Completed marketplace purchases",
})

var FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "economy_fees_collected_nanos_total",
	Help: "Platform fees charged, in nanos",
}, []string{"source"})

// Deposits is labelled by result: credited, duplicate, unknown_account, ignored or failed.
var Deposits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "economy_deposits_total",
	Help: "External transactions seen by the deposit listener",
}, []string{"result"})

var DepositPollFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "economy_deposit_poll_failures_total",
	Help: "Deposit feed polls that failed",
})

var WithdrawalsRequested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "economy_withdrawals_requested_total",
	Help: "Withdrawal holds created",
})
