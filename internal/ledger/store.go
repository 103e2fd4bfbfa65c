package ledger

import (
	"context"
	"errors"
	"time"
)

// Common errors shared by all store implementations
var (
	ErrLinkNotFound        = errors.New("link not found")
	ErrSellerNotFound      = errors.New("seller not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrWalletNotConfigured = errors.New("no payout method on file")
)

// Store is the persistence contract for the activity ledger. All mutation
// of the aggregates goes through these methods; each mutating call is a
// single atomic unit.
type Store interface {
	// CreatePurchase records a purchase exactly once per external payment
	// id: the dedup lookup, the activity insert, the link counter updates
	// and the seller funds credit either all happen or none do. A redelivery
	// returns the existing receipt with Created=false.
	CreatePurchase(ctx context.Context, params PurchaseParams) (*PurchaseReceipt, error)

	// CreateWithdrawal debits the seller's available funds and appends the
	// matching activity atomically. Concurrent withdrawals against the same
	// balance serialize; the balance never goes negative.
	CreateWithdrawal(ctx context.Context, sellerID, amountCents int64) (*Activity, error)

	// IncrementClicks bumps a link's click counter. Concurrent increments
	// must not be lost.
	IncrementClicks(ctx context.Context, linkID int64) error

	// GetPurchaseByPaymentID returns the purchase recorded for an external
	// payment id, or nil if none exists yet.
	GetPurchaseByPaymentID(ctx context.Context, externalPaymentID string) (*Activity, error)

	GetLinkStats(ctx context.Context, linkID int64) (*LinkStats, error)
	GetWallet(ctx context.Context, sellerID int64) (*Wallet, error)

	ListBySeller(ctx context.Context, sellerID int64, from, to time.Time, limit, offset int) ([]*Activity, int, error)
	ListByLink(ctx context.Context, linkID int64, from, to time.Time, limit, offset int) ([]*Activity, int, error)

	// ReconcileSellerFunds replays the seller's ledger (seller shares of
	// purchases minus withdrawals, using per-row fee snapshots) and returns
	// the replayed and stored balances. With repair set, the stored balance
	// is overwritten with the replayed one in the same atomic unit.
	ReconcileSellerFunds(ctx context.Context, sellerID int64, repair bool) (ledgerFunds, storedFunds int64, err error)
}
