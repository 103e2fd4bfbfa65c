package seller

import (
	"context"
	"errors"

	"github.com/fkhayef/paygate/internal/money"
)

// Common errors
var (
	ErrSellerNotFound    = errors.New("seller not found")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrMissingPayout     = errors.New("payout method is required")
)

// Service handles seller profile business logic
type Service struct {
	repo              *Repository
	defaultFeePercent float64
}

// NewService creates a new seller service
func NewService(repo *Repository, defaultFeePercent float64) *Service {
	return &Service{
		repo:              repo,
		defaultFeePercent: defaultFeePercent,
	}
}

// Create registers a new seller at the platform's default fee rate
func (s *Service) Create(ctx context.Context, req *CreateSellerRequest) (*Seller, error) {
	existing, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyInUse
	}

	return s.repo.Create(ctx, req, s.defaultFeePercent)
}

// GetByID retrieves a seller by their ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Seller, error) {
	seller, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, ErrSellerNotFound
	}
	return seller, nil
}

// UpdateFee changes the seller's current fee rate. Recorded sales keep
// their per-activity snapshots, so this never rewrites history.
func (s *Service) UpdateFee(ctx context.Context, id int64, req *UpdateFeeRequest) (*Seller, error) {
	if req.FeePercent < 0 || req.FeePercent > 100 {
		return nil, money.ErrInvalidFeePercent
	}

	seller, err := s.repo.UpdateFee(ctx, id, req.FeePercent)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, ErrSellerNotFound
	}
	return seller, nil
}

// UpdatePayout sets the payout destination required before withdrawals
func (s *Service) UpdatePayout(ctx context.Context, id int64, req *UpdatePayoutRequest) (*Seller, error) {
	if req.PayoutMethod == "" {
		return nil, ErrMissingPayout
	}

	seller, err := s.repo.UpdatePayout(ctx, id, req.PayoutMethod)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, ErrSellerNotFound
	}
	return seller, nil
}

// UpdateNotifications toggles the sale-notification email preference
func (s *Service) UpdateNotifications(ctx context.Context, id int64, req *UpdateNotificationsRequest) (*Seller, error) {
	seller, err := s.repo.UpdateNotifications(ctx, id, req.NotifyOnSale)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, ErrSellerNotFound
	}
	return seller, nil
}
