package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
)

// Sentinel errors shared across all backend implementations and engines.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientGoods      = errors.New("insufficient goods")
	ErrNotFound               = errors.New("not found")
	ErrAuctionNotFound        = fmt.Errorf("auction %w", ErrNotFound)
	ErrListingNotFound        = fmt.Errorf("listing %w", ErrNotFound)
	ErrWithdrawalNotFound     = fmt.Errorf("withdrawal %w", ErrNotFound)
	ErrNotOwner               = errors.New("caller is not the owner")
	ErrAuctionClosed          = errors.New("auction closed")
	ErrAuctionNotExpired      = errors.New("auction has not expired")
	ErrHasBids                = errors.New("auction has bids")
	ErrBidTooLow              = errors.New("bid too low")
	ErrSelfTrade              = errors.New("self trade")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
)

// InsufficientErr returns the solvency error for a balance field.
func InsufficientErr(field models.Field) error {
	if field == models.FieldGoods {
		return ErrInsufficientGoods
	}
	return ErrInsufficientFunds
}

// AdjustParams describes one conditional balance mutation.
// A non-empty Reference is an idempotency key: it may be applied only once.
type AdjustParams struct {
	UserId       string
	Field        models.Field
	Delta        int64
	Kind         string
	Reference    string
	Counterparty string
}

// Tx is a unit of work. Everything done through it commits or rolls back together.
type Tx interface {
	// AdjustBalance applies Delta with compare-and-swap semantics and returns the new balance.
	// The result is never allowed to go below zero.
	AdjustBalance(ctx context.Context, params AdjustParams) (int64, error)
	GetBalance(ctx context.Context, userId string, field models.Field) (int64, error)

	GetAuction(ctx context.Context, auctionId string) (*models.Auction, error)
	InsertAuction(ctx context.Context, auction *models.Auction) error
	// UpdateAuctionBid stores auction.HighestBid if auction.Version is still current
	// and bumps auction.Version on success.
	UpdateAuctionBid(ctx context.Context, auction *models.Auction) error
	DeleteAuction(ctx context.Context, auctionId string) error

	GetListing(ctx context.Context, listingId string) (*models.Listing, error)
	InsertListing(ctx context.Context, listing *models.Listing) error
	DeleteListing(ctx context.Context, listingId string) error

	PlayerExists(ctx context.Context, playerId string) (bool, error)
	InsertDeposit(ctx context.Context, deposit *models.DepositRecord) error

	InsertWithdrawal(ctx context.Context, request *models.WithdrawRequest) error
	GetWithdrawal(ctx context.Context, withdrawalId string) (*models.WithdrawRequest, error)
	UpdateWithdrawalStatus(ctx context.Context, withdrawalId string, from, to models.WithdrawStatus, at time.Time) error
}

// LedgerStore defines the contract the persistence backend must satisfy.
type LedgerStore interface {
	// RunInTx runs fn in one transaction, retrying the whole unit on write conflicts.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// --- Players ---
	RegisterPlayer(ctx context.Context, playerId, name string) (*models.Player, error)
	EnsurePlayer(ctx context.Context, playerId string) error
	GetPlayers(ctx context.Context) ([]models.Player, error)
	PlayerExists(ctx context.Context, playerId string) (bool, error)

	// --- Balances ---
	AdjustBalance(ctx context.Context, params AdjustParams) (int64, error)
	GetBalance(ctx context.Context, userId string, field models.Field) (int64, error)
	GetBalances(ctx context.Context, userId string) (models.Balances, error)
	GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)
	GetLedgerEntries(ctx context.Context, userId string, field models.Field, limit, offset int) ([]models.LedgerEntry, error)
	ReconcileBalance(ctx context.Context, userId string, field models.Field) error

	// --- Auctions ---
	GetAuction(ctx context.Context, auctionId string) (*models.Auction, error)
	ListAuctions(ctx context.Context) ([]models.Auction, error)
	ListExpiredAuctions(ctx context.Context, now time.Time) ([]models.Auction, error)

	// --- Listings ---
	GetListing(ctx context.Context, listingId string) (*models.Listing, error)
	ListListings(ctx context.Context) ([]models.Listing, error)

	// --- Wallet ---
	IsDepositCredited(ctx context.Context, txHash string) (bool, error)
	GetDeposits(ctx context.Context, userId string) ([]models.DepositRecord, error)
	GetWithdrawal(ctx context.Context, withdrawalId string) (*models.WithdrawRequest, error)
	ListWithdrawals(ctx context.Context, userId string) ([]models.WithdrawRequest, error)
	ListWithdrawalsByStatus(ctx context.Context, status models.WithdrawStatus) ([]models.WithdrawRequest, error)

	// --- Lifecycle ---
	Close()
}
