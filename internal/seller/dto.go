package seller

// CreateSellerRequest represents the request body for registering a seller
type CreateSellerRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateFeeRequest changes the seller's current fee rate. Affects future
// checkouts only; recorded sales keep their snapshots.
type UpdateFeeRequest struct {
	FeePercent float64 `json:"fee_percent" validate:"gte=0,lte=100"`
}

// UpdatePayoutRequest sets the payout destination required for withdrawals
type UpdatePayoutRequest struct {
	PayoutMethod string `json:"payout_method" validate:"required"`
}

// UpdateNotificationsRequest toggles the sale-notification email
type UpdateNotificationsRequest struct {
	NotifyOnSale bool `json:"notify_on_sale"`
}

// SellerResponse represents the response for a single seller
type SellerResponse struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	FeePercent   float64 `json:"fee_percent"`
	PayoutMethod *string `json:"payout_method,omitempty"`
	NotifyOnSale bool    `json:"notify_on_sale"`
	CreatedAt    string  `json:"created_at"`
}

// ToResponse converts a Seller model to a SellerResponse DTO
func (s *Seller) ToResponse() *SellerResponse {
	return &SellerResponse{
		ID:           s.ID,
		Email:        s.Email,
		FeePercent:   s.FeePercent,
		PayoutMethod: s.PayoutMethod,
		NotifyOnSale: s.NotifyOnSale,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
