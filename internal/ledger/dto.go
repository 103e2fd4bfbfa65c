package ledger

// WithdrawRequest represents a withdrawal request from the wallet UI
type WithdrawRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}

// ReconcileRequest controls whether a drifted balance gets repaired
type ReconcileRequest struct {
	Repair bool `json:"repair"`
}

// ActivityResponse represents one ledger activity
type ActivityResponse struct {
	ID                 int64   `json:"id"`
	LinkID             *int64  `json:"link_id,omitempty"`
	SellerID           int64   `json:"seller_id"`
	Type               string  `json:"type"`
	AmountCents        int64   `json:"amount_cents"`
	AmountUSD          float64 `json:"amount_usd"`
	FeePercentSnapshot float64 `json:"fee_percent_snapshot"`
	ExternalPaymentID  *string `json:"external_payment_id,omitempty"`
	PayerEmail         *string `json:"payer_email,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

// WalletResponse represents a seller's balance
type WalletResponse struct {
	SellerID            int64   `json:"seller_id"`
	AvailableFundsCents int64   `json:"available_funds_cents"`
	AvailableFundsUSD   float64 `json:"available_funds_usd"`
	PayoutConfigured    bool    `json:"payout_configured"`
}

// LinkStatsResponse represents a link's aggregate counters
type LinkStatsResponse struct {
	LinkID             int64   `json:"link_id"`
	Title              string  `json:"title"`
	URL                string  `json:"url"`
	PriceCents         int64   `json:"price_cents"`
	TotalClicks        int64   `json:"total_clicks"`
	TotalSales         int64   `json:"total_sales"`
	TotalEarningsCents int64   `json:"total_earnings_cents"`
	TotalEarningsUSD   float64 `json:"total_earnings_usd"`
}

// UnlockResponse tells the buyer-facing page whether a payment has been
// recorded yet
type UnlockResponse struct {
	Unlocked bool              `json:"unlocked"`
	Purchase *ActivityResponse `json:"purchase,omitempty"`
}

// ToResponse converts an Activity model to an ActivityResponse DTO
func (a *Activity) ToResponse() *ActivityResponse {
	return &ActivityResponse{
		ID:                 a.ID,
		LinkID:             a.LinkID,
		SellerID:           a.SellerID,
		Type:               string(a.Type),
		AmountCents:        a.AmountCents,
		AmountUSD:          centsToUSD(a.AmountCents),
		FeePercentSnapshot: a.FeePercentSnapshot,
		ExternalPaymentID:  a.ExternalPaymentID,
		PayerEmail:         a.PayerEmail,
		CreatedAt:          a.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts a Wallet model to a WalletResponse DTO
func (w *Wallet) ToResponse() *WalletResponse {
	return &WalletResponse{
		SellerID:            w.SellerID,
		AvailableFundsCents: w.AvailableFundsCents,
		AvailableFundsUSD:   centsToUSD(w.AvailableFundsCents),
		PayoutConfigured:    w.PayoutMethod != nil && *w.PayoutMethod != "",
	}
}

// ToResponse converts a LinkStats model to a LinkStatsResponse DTO
func (l *LinkStats) ToResponse() *LinkStatsResponse {
	return &LinkStatsResponse{
		LinkID:             l.LinkID,
		Title:              l.Title,
		URL:                l.URL,
		PriceCents:         l.PriceCents,
		TotalClicks:        l.TotalClicks,
		TotalSales:         l.TotalSales,
		TotalEarningsCents: l.TotalEarningsCents,
		TotalEarningsUSD:   centsToUSD(l.TotalEarningsCents),
	}
}

// centsToUSD derives display dollars; all arithmetic stays in cents
func centsToUSD(cents int64) float64 {
	return float64(cents) / 100
}
