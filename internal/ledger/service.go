package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/fkhayef/paygate/internal/money"
)

// Common errors
var (
	ErrMissingPaymentID = errors.New("external payment id is required")
	ErrInvalidAmount    = errors.New("amount must be a positive number of cents")
)

// Service is the only component permitted to create activities and mutate
// the aggregates. Atomicity lives in the store; the service owns the money
// math and validation.
type Service struct {
	store Store
}

// NewService creates a new ledger service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// RecordPurchaseInput carries the settlement parameters extracted from a
// confirmed payment event
type RecordPurchaseInput struct {
	LinkID            int64
	ExternalPaymentID string
	BasePriceCents    int64

	// FeePercentSnapshot is the rate captured at checkout time, not the
	// seller's current rate. Changing a fee rate must never retroactively
	// alter historical sales.
	FeePercentSnapshot float64

	PayerEmail *string
}

// RecordPurchase settles a confirmed payment exactly once per external
// payment id. Redeliveries return the existing receipt with Created=false.
func (s *Service) RecordPurchase(ctx context.Context, in RecordPurchaseInput) (*PurchaseReceipt, error) {
	if in.ExternalPaymentID == "" {
		return nil, ErrMissingPaymentID
	}

	sellerShare, err := money.SellerShare(in.BasePriceCents, in.FeePercentSnapshot)
	if err != nil {
		return nil, err
	}

	return s.store.CreatePurchase(ctx, PurchaseParams{
		LinkID:             in.LinkID,
		ExternalPaymentID:  in.ExternalPaymentID,
		BasePriceCents:     in.BasePriceCents,
		FeePercentSnapshot: in.FeePercentSnapshot,
		SellerShareCents:   sellerShare,
		PayerEmail:         in.PayerEmail,
	})
}

// RecordWithdrawal debits a seller's available funds and appends the
// matching ledger activity
func (s *Service) RecordWithdrawal(ctx context.Context, sellerID, amountCents int64) (*Activity, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.store.CreateWithdrawal(ctx, sellerID, amountCents)
}

// RecordClick increments a link's click counter
func (s *Service) RecordClick(ctx context.Context, linkID int64) error {
	return s.store.IncrementClicks(ctx, linkID)
}

// CheckUnlock reports whether a payment has been recorded. The buyer-facing
// page polls this so a delayed webhook never leaves a paid buyer stuck.
func (s *Service) CheckUnlock(ctx context.Context, externalPaymentID string) (*Activity, error) {
	if externalPaymentID == "" {
		return nil, ErrMissingPaymentID
	}
	return s.store.GetPurchaseByPaymentID(ctx, externalPaymentID)
}

// GetWallet retrieves a seller's balance and payout configuration
func (s *Service) GetWallet(ctx context.Context, sellerID int64) (*Wallet, error) {
	return s.store.GetWallet(ctx, sellerID)
}

// GetLinkStats retrieves a link's aggregate counters
func (s *Service) GetLinkStats(ctx context.Context, linkID int64) (*LinkStats, error) {
	return s.store.GetLinkStats(ctx, linkID)
}

// ListSellerActivity retrieves a seller's activities within a date range
func (s *Service) ListSellerActivity(ctx context.Context, sellerID int64, from, to time.Time, page, perPage int) ([]*Activity, int, error) {
	from, to = clampRange(from, to)
	page, perPage = clampPage(page, perPage)
	offset := (page - 1) * perPage
	return s.store.ListBySeller(ctx, sellerID, from, to, perPage, offset)
}

// ListLinkActivity retrieves a link's activities within a date range
func (s *Service) ListLinkActivity(ctx context.Context, linkID int64, from, to time.Time, page, perPage int) ([]*Activity, int, error) {
	from, to = clampRange(from, to)
	page, perPage = clampPage(page, perPage)
	offset := (page - 1) * perPage
	return s.store.ListByLink(ctx, linkID, from, to, perPage, offset)
}

// ReconcileReport compares a seller's stored balance against a full ledger
// replay
type ReconcileReport struct {
	SellerID         int64 `json:"seller_id"`
	LedgerFundsCents int64 `json:"ledger_funds_cents"`
	StoredFundsCents int64 `json:"stored_funds_cents"`
	DriftCents       int64 `json:"drift_cents"`
	Repaired         bool  `json:"repaired"`
}

// Reconcile replays the seller's ledger and reports any drift between the
// replayed and stored balances. With repair set, the stored balance is
// overwritten by the replayed one. This is the disaster-recovery path, not
// part of normal settlement.
func (s *Service) Reconcile(ctx context.Context, sellerID int64, repair bool) (*ReconcileReport, error) {
	ledgerFunds, storedFunds, err := s.store.ReconcileSellerFunds(ctx, sellerID, repair)
	if err != nil {
		return nil, err
	}
	return &ReconcileReport{
		SellerID:         sellerID,
		LedgerFundsCents: ledgerFunds,
		StoredFundsCents: storedFunds,
		DriftCents:       storedFunds - ledgerFunds,
		Repaired:         repair && ledgerFunds != storedFunds,
	}, nil
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func clampRange(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Minute)
	}
	return from, to
}
