package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fkhayef/paygate/internal/money"
)

// uniqueViolation is the Postgres error code raised when the partial unique
// index on activities.external_payment_id rejects a duplicate purchase
const uniqueViolation = "23505"

const activityColumns = `id, link_id, seller_id, type, amount_cents, fee_percent_snapshot::float8, external_payment_id, payer_email, created_at`

// Repository is the Postgres-backed ledger store
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// CreatePurchase settles a purchase in one transaction: dedup lookup,
// activity insert, link counters, seller funds. The in-transaction lookup
// handles sequential redeliveries; the unique index on external_payment_id
// handles concurrent ones.
func (r *Repository) CreatePurchase(ctx context.Context, params PurchaseParams) (*PurchaseReceipt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback()

	receipt := &PurchaseReceipt{SellerShareCents: params.SellerShareCents}

	var sellerID int64
	lookup := `
		SELECT l.seller_id, l.title, l.url, s.email, s.notify_on_sale
		FROM links l
		JOIN sellers s ON s.id = l.seller_id
		WHERE l.id = $1
	`
	err = tx.QueryRowContext(ctx, lookup, params.LinkID).Scan(
		&sellerID,
		&receipt.LinkTitle,
		&receipt.LinkURL,
		&receipt.SellerEmail,
		&receipt.NotifyOnSale,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to look up link: %w", err)
	}

	// Fast path for redelivered webhooks: the payment was already settled
	existing, err := scanActivity(tx.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE external_payment_id = $1 AND type = $2`,
		params.ExternalPaymentID, ActivityTypePurchase))
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing purchase: %w", err)
	}
	if existing != nil {
		receipt.Activity = existing
		receipt.Created = false
		return receipt, nil
	}

	activity := &Activity{}
	insert := `
		INSERT INTO activities (link_id, seller_id, type, amount_cents, fee_percent_snapshot, external_payment_id, payer_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + activityColumns
	err = tx.QueryRowContext(ctx, insert,
		params.LinkID, sellerID, ActivityTypePurchase, params.BasePriceCents,
		params.FeePercentSnapshot, params.ExternalPaymentID, params.PayerEmail,
	).Scan(
		&activity.ID, &activity.LinkID, &activity.SellerID, &activity.Type,
		&activity.AmountCents, &activity.FeePercentSnapshot,
		&activity.ExternalPaymentID, &activity.PayerEmail, &activity.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			// A concurrent delivery of the same payment won the race.
			// Its transaction may not have committed yet, so the existing
			// row can be momentarily invisible; surface a retryable error
			// in that window.
			return r.duplicateReceipt(ctx, params.ExternalPaymentID, receipt)
		}
		return nil, fmt.Errorf("failed to insert purchase activity: %w", err)
	}

	update := `
		UPDATE links
		SET total_sales = total_sales + 1,
		    total_earnings_cents = total_earnings_cents + $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update, params.LinkID, params.BasePriceCents); err != nil {
		return nil, fmt.Errorf("failed to update link counters: %w", err)
	}

	credit := `
		UPDATE sellers
		SET available_funds_cents = available_funds_cents + $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, credit, sellerID, params.SellerShareCents); err != nil {
		return nil, fmt.Errorf("failed to credit seller funds: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	receipt.Activity = activity
	receipt.Created = true
	return receipt, nil
}

// duplicateReceipt resolves a unique-violation race by fetching the
// already-recorded purchase outside the failed transaction
func (r *Repository) duplicateReceipt(ctx context.Context, externalPaymentID string, receipt *PurchaseReceipt) (*PurchaseReceipt, error) {
	existing, err := r.GetPurchaseByPaymentID(ctx, externalPaymentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("concurrent settlement of payment %s still in flight", externalPaymentID)
	}
	receipt.Activity = existing
	receipt.Created = false
	return receipt, nil
}

// CreateWithdrawal debits the seller's balance and appends the matching
// activity. The row lock on the seller serializes concurrent withdrawals.
func (r *Repository) CreateWithdrawal(ctx context.Context, sellerID, amountCents int64) (*Activity, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin withdrawal: %w", err)
	}
	defer tx.Rollback()

	var payoutMethod *string
	var funds int64
	err = tx.QueryRowContext(ctx,
		`SELECT payout_method, available_funds_cents FROM sellers WHERE id = $1 FOR UPDATE`,
		sellerID,
	).Scan(&payoutMethod, &funds)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to lock seller row: %w", err)
	}

	if payoutMethod == nil || *payoutMethod == "" {
		return nil, ErrWalletNotConfigured
	}
	if amountCents > funds {
		return nil, ErrInsufficientFunds
	}

	debit := `
		UPDATE sellers
		SET available_funds_cents = available_funds_cents - $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, debit, sellerID, amountCents); err != nil {
		return nil, fmt.Errorf("failed to debit seller funds: %w", err)
	}

	activity := &Activity{}
	insert := `
		INSERT INTO activities (seller_id, type, amount_cents, fee_percent_snapshot)
		VALUES ($1, $2, $3, 0)
		RETURNING ` + activityColumns
	err = tx.QueryRowContext(ctx, insert, sellerID, ActivityTypeWithdrawal, amountCents).Scan(
		&activity.ID, &activity.LinkID, &activity.SellerID, &activity.Type,
		&activity.AmountCents, &activity.FeePercentSnapshot,
		&activity.ExternalPaymentID, &activity.PayerEmail, &activity.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert withdrawal activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	return activity, nil
}

// IncrementClicks bumps a link's click counter with a single atomic UPDATE
func (r *Repository) IncrementClicks(ctx context.Context, linkID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE links SET total_clicks = total_clicks + 1 WHERE id = $1`, linkID)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	if rows == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// GetPurchaseByPaymentID retrieves the purchase recorded for an external
// payment id, or nil if none exists
func (r *Repository) GetPurchaseByPaymentID(ctx context.Context, externalPaymentID string) (*Activity, error) {
	activity, err := scanActivity(r.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE external_payment_id = $1 AND type = $2`,
		externalPaymentID, ActivityTypePurchase))
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return activity, nil
}

// GetLinkStats retrieves a link's aggregate counters
func (r *Repository) GetLinkStats(ctx context.Context, linkID int64) (*LinkStats, error) {
	query := `
		SELECT id, seller_id, title, url, price_cents, total_clicks, total_sales, total_earnings_cents
		FROM links
		WHERE id = $1
	`
	stats := &LinkStats{}
	err := r.db.QueryRowContext(ctx, query, linkID).Scan(
		&stats.LinkID, &stats.SellerID, &stats.Title, &stats.URL,
		&stats.PriceCents, &stats.TotalClicks, &stats.TotalSales, &stats.TotalEarningsCents,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link stats: %w", err)
	}
	return stats, nil
}

// GetWallet retrieves a seller's balance and payout configuration
func (r *Repository) GetWallet(ctx context.Context, sellerID int64) (*Wallet, error) {
	wallet := &Wallet{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, available_funds_cents, payout_method FROM sellers WHERE id = $1`,
		sellerID,
	).Scan(&wallet.SellerID, &wallet.AvailableFundsCents, &wallet.PayoutMethod)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// ListBySeller retrieves a seller's activities within a date range
func (r *Repository) ListBySeller(ctx context.Context, sellerID int64, from, to time.Time, limit, offset int) ([]*Activity, int, error) {
	return r.list(ctx, `seller_id`, sellerID, from, to, limit, offset)
}

// ListByLink retrieves a link's activities within a date range
func (r *Repository) ListByLink(ctx context.Context, linkID int64, from, to time.Time, limit, offset int) ([]*Activity, int, error) {
	return r.list(ctx, `link_id`, linkID, from, to, limit, offset)
}

func (r *Repository) list(ctx context.Context, column string, id int64, from, to time.Time, limit, offset int) ([]*Activity, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM activities WHERE ` + column + ` = $1 AND created_at >= $2 AND created_at < $3`
	if err := r.db.QueryRowContext(ctx, countQuery, id, from, to).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE ` + column + ` = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.db.QueryContext(ctx, query, id, from, to, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		activity := &Activity{}
		if err := rows.Scan(
			&activity.ID, &activity.LinkID, &activity.SellerID, &activity.Type,
			&activity.AmountCents, &activity.FeePercentSnapshot,
			&activity.ExternalPaymentID, &activity.PayerEmail, &activity.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}

	return activities, total, nil
}

// ReconcileSellerFunds replays the seller's ledger using the per-row fee
// snapshots and optionally repairs the stored balance. Replay math runs in
// Go through the money package so rounding matches the write path exactly.
func (r *Repository) ReconcileSellerFunds(ctx context.Context, sellerID int64, repair bool) (int64, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin reconciliation: %w", err)
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx,
		`SELECT available_funds_cents FROM sellers WHERE id = $1 FOR UPDATE`, sellerID,
	).Scan(&stored)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, ErrSellerNotFound
		}
		return 0, 0, fmt.Errorf("failed to lock seller row: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT type, amount_cents, fee_percent_snapshot::float8 FROM activities WHERE seller_id = $1 ORDER BY created_at, id`,
		sellerID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to replay activities: %w", err)
	}
	defer rows.Close()

	var ledgerFunds int64
	for rows.Next() {
		var activityType ActivityType
		var amount int64
		var feeSnapshot float64
		if err := rows.Scan(&activityType, &amount, &feeSnapshot); err != nil {
			return 0, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		switch activityType {
		case ActivityTypePurchase:
			share, err := money.SellerShare(amount, feeSnapshot)
			if err != nil {
				return 0, 0, fmt.Errorf("failed to replay purchase: %w", err)
			}
			ledgerFunds += share
		case ActivityTypeWithdrawal:
			ledgerFunds -= amount
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to replay activities: %w", err)
	}

	if repair && ledgerFunds != stored {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sellers SET available_funds_cents = $2 WHERE id = $1`,
			sellerID, ledgerFunds); err != nil {
			return 0, 0, fmt.Errorf("failed to repair seller funds: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	return ledgerFunds, stored, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanActivity scans one activity row, mapping sql.ErrNoRows to nil
func scanActivity(row rowScanner) (*Activity, error) {
	activity := &Activity{}
	err := row.Scan(
		&activity.ID, &activity.LinkID, &activity.SellerID, &activity.Type,
		&activity.AmountCents, &activity.FeePercentSnapshot,
		&activity.ExternalPaymentID, &activity.PayerEmail, &activity.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}
