package seller

import (
	"context"
	"database/sql"
	"fmt"
)

const sellerColumns = `id, email, fee_percent::float8, payout_method, notify_on_sale, created_at`

// Repository handles seller profile persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new seller repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new seller into the database
func (r *Repository) Create(ctx context.Context, req *CreateSellerRequest, defaultFeePercent float64) (*Seller, error) {
	query := `
		INSERT INTO sellers (email, fee_percent)
		VALUES ($1, $2)
		RETURNING ` + sellerColumns

	seller := &Seller{}
	err := r.db.QueryRowContext(ctx, query, req.Email, defaultFeePercent).Scan(
		&seller.ID,
		&seller.Email,
		&seller.FeePercent,
		&seller.PayoutMethod,
		&seller.NotifyOnSale,
		&seller.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create seller: %w", err)
	}

	return seller, nil
}

// GetByID retrieves a seller by their ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE id = $1`

	seller := &Seller{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&seller.ID,
		&seller.Email,
		&seller.FeePercent,
		&seller.PayoutMethod,
		&seller.NotifyOnSale,
		&seller.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}

	return seller, nil
}

// GetByEmail retrieves a seller by their email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE email = $1`

	seller := &Seller{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&seller.ID,
		&seller.Email,
		&seller.FeePercent,
		&seller.PayoutMethod,
		&seller.NotifyOnSale,
		&seller.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}

	return seller, nil
}

// UpdateFee changes the seller's current fee rate
func (r *Repository) UpdateFee(ctx context.Context, id int64, feePercent float64) (*Seller, error) {
	query := `
		UPDATE sellers
		SET fee_percent = $2
		WHERE id = $1
		RETURNING ` + sellerColumns

	return r.scanUpdate(ctx, query, id, feePercent)
}

// UpdatePayout sets the seller's payout destination
func (r *Repository) UpdatePayout(ctx context.Context, id int64, payoutMethod string) (*Seller, error) {
	query := `
		UPDATE sellers
		SET payout_method = $2
		WHERE id = $1
		RETURNING ` + sellerColumns

	return r.scanUpdate(ctx, query, id, payoutMethod)
}

// UpdateNotifications toggles the sale-notification preference
func (r *Repository) UpdateNotifications(ctx context.Context, id int64, notifyOnSale bool) (*Seller, error) {
	query := `
		UPDATE sellers
		SET notify_on_sale = $2
		WHERE id = $1
		RETURNING ` + sellerColumns

	return r.scanUpdate(ctx, query, id, notifyOnSale)
}

func (r *Repository) scanUpdate(ctx context.Context, query string, args ...interface{}) (*Seller, error) {
	seller := &Seller{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&seller.ID,
		&seller.Email,
		&seller.FeePercent,
		&seller.PayoutMethod,
		&seller.NotifyOnSale,
		&seller.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update seller: %w", err)
	}

	return seller, nil
}
