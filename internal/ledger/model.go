package ledger

import "time"

// ActivityType represents the kind of ledger activity
type ActivityType string

const (
	ActivityTypePurchase   ActivityType = "PURCHASE"
	ActivityTypeWithdrawal ActivityType = "WITHDRAWAL"
)

// Activity is one row of the append-only ledger. Activities are never
// mutated or deleted after creation; aggregates are running totals over
// them and can be rebuilt by replay.
type Activity struct {
	ID       int64        `json:"id"`
	LinkID   *int64       `json:"link_id,omitempty"` // nil for withdrawals
	SellerID int64        `json:"seller_id"`
	Type     ActivityType `json:"type"`

	// AmountCents is the gross sale amount for purchases and the debited
	// amount for withdrawals
	AmountCents int64 `json:"amount_cents"`

	// FeePercentSnapshot is the platform fee rate at checkout time. Stored
	// per row so historical earnings stay reproducible after a seller
	// changes their live rate.
	FeePercentSnapshot float64 `json:"fee_percent_snapshot"`

	// ExternalPaymentID is the payment processor's id, unique per purchase.
	// It is the idempotency key for webhook redelivery.
	ExternalPaymentID *string `json:"external_payment_id,omitempty"`

	PayerEmail *string   `json:"payer_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LinkStats holds the denormalized per-link aggregate counters
type LinkStats struct {
	LinkID             int64  `json:"link_id"`
	SellerID           int64  `json:"seller_id"`
	Title              string `json:"title"`
	URL                string `json:"url"`
	PriceCents         int64  `json:"price_cents"`
	TotalClicks        int64  `json:"total_clicks"`
	TotalSales         int64  `json:"total_sales"`
	TotalEarningsCents int64  `json:"total_earnings_cents"` // gross, for display
}

// Wallet is the seller-side financial aggregate
type Wallet struct {
	SellerID            int64   `json:"seller_id"`
	AvailableFundsCents int64   `json:"available_funds_cents"`
	PayoutMethod        *string `json:"payout_method,omitempty"`
}

// PurchaseParams carries everything the store needs to settle one purchase
// in a single atomic unit
type PurchaseParams struct {
	LinkID             int64
	ExternalPaymentID  string
	BasePriceCents     int64
	FeePercentSnapshot float64
	SellerShareCents   int64
	PayerEmail         *string
}

// PurchaseReceipt is the result of a settlement attempt, including the
// denormalized display data the notification fan-out needs
type PurchaseReceipt struct {
	Activity *Activity

	// Created is false when the payment id had already been recorded and
	// the existing activity is returned unchanged
	Created bool

	SellerShareCents int64
	LinkTitle        string
	LinkURL          string
	SellerEmail      string
	NotifyOnSale     bool
}
