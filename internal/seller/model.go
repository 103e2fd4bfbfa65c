package seller

import "time"

// Seller represents a seller profile in the system.
//
// FeePercent is the seller's current rate and applies to future checkouts
// only; every recorded sale carries its own fee snapshot in the ledger.
// The available-funds balance deliberately lives outside this package: it
// is written exclusively by the ledger.
type Seller struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FeePercent   float64   `json:"fee_percent"`
	PayoutMethod *string   `json:"payout_method,omitempty"`
	NotifyOnSale bool      `json:"notify_on_sale"`
	CreatedAt    time.Time `json:"created_at"`
}
