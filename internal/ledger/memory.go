package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fkhayef/paygate/internal/money"
)

// MemStore is an in-memory ledger store. A single mutex makes every
// mutating call atomic, mirroring the transaction boundaries of the
// Postgres implementation. Used in tests and local development.
type MemStore struct {
	mu sync.Mutex

	sellers    map[int64]*memSeller
	links      map[int64]*memLink
	activities []*Activity
	byPayment  map[string]*Activity
	nextID     int64
}

type memSeller struct {
	email        string
	feePercent   float64
	payoutMethod *string
	notifyOnSale bool
	fundsCents   int64
}

type memLink struct {
	sellerID           int64
	title              string
	url                string
	priceCents         int64
	totalClicks        int64
	totalSales         int64
	totalEarningsCents int64
}

// NewMemStore creates an empty in-memory ledger store
func NewMemStore() *MemStore {
	return &MemStore{
		sellers:   make(map[int64]*memSeller),
		links:     make(map[int64]*memLink),
		byPayment: make(map[string]*Activity),
	}
}

var _ Store = (*MemStore)(nil)

// AddSeller seeds a seller row
func (m *MemStore) AddSeller(id int64, email string, feePercent float64, payoutMethod *string, notifyOnSale bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sellers[id] = &memSeller{
		email:        email,
		feePercent:   feePercent,
		payoutMethod: payoutMethod,
		notifyOnSale: notifyOnSale,
	}
}

// AddLink seeds a link row owned by an existing seller
func (m *MemStore) AddLink(id, sellerID int64, title, url string, priceCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[id] = &memLink{
		sellerID:   sellerID,
		title:      title,
		url:        url,
		priceCents: priceCents,
	}
}

func (m *MemStore) CreatePurchase(ctx context.Context, params PurchaseParams) (*PurchaseReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[params.LinkID]
	if !ok {
		return nil, ErrLinkNotFound
	}
	seller, ok := m.sellers[link.sellerID]
	if !ok {
		return nil, ErrSellerNotFound
	}

	receipt := &PurchaseReceipt{
		SellerShareCents: params.SellerShareCents,
		LinkTitle:        link.title,
		LinkURL:          link.url,
		SellerEmail:      seller.email,
		NotifyOnSale:     seller.notifyOnSale,
	}

	if existing, ok := m.byPayment[params.ExternalPaymentID]; ok {
		receipt.Activity = existing
		receipt.Created = false
		return receipt, nil
	}

	m.nextID++
	paymentID := params.ExternalPaymentID
	linkID := params.LinkID
	activity := &Activity{
		ID:                 m.nextID,
		LinkID:             &linkID,
		SellerID:           link.sellerID,
		Type:               ActivityTypePurchase,
		AmountCents:        params.BasePriceCents,
		FeePercentSnapshot: params.FeePercentSnapshot,
		ExternalPaymentID:  &paymentID,
		PayerEmail:         params.PayerEmail,
		CreatedAt:          time.Now().UTC(),
	}

	m.activities = append(m.activities, activity)
	m.byPayment[paymentID] = activity
	link.totalSales++
	link.totalEarningsCents += params.BasePriceCents
	seller.fundsCents += params.SellerShareCents

	receipt.Activity = activity
	receipt.Created = true
	return receipt, nil
}

func (m *MemStore) CreateWithdrawal(ctx context.Context, sellerID, amountCents int64) (*Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seller, ok := m.sellers[sellerID]
	if !ok {
		return nil, ErrSellerNotFound
	}
	if seller.payoutMethod == nil || *seller.payoutMethod == "" {
		return nil, ErrWalletNotConfigured
	}
	if amountCents > seller.fundsCents {
		return nil, ErrInsufficientFunds
	}

	m.nextID++
	activity := &Activity{
		ID:          m.nextID,
		SellerID:    sellerID,
		Type:        ActivityTypeWithdrawal,
		AmountCents: amountCents,
		CreatedAt:   time.Now().UTC(),
	}
	m.activities = append(m.activities, activity)
	seller.fundsCents -= amountCents

	return activity, nil
}

func (m *MemStore) IncrementClicks(ctx context.Context, linkID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[linkID]
	if !ok {
		return ErrLinkNotFound
	}
	link.totalClicks++
	return nil
}

func (m *MemStore) GetPurchaseByPaymentID(ctx context.Context, externalPaymentID string) (*Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, ok := m.byPayment[externalPaymentID]
	if !ok {
		return nil, nil
	}
	copied := *activity
	return &copied, nil
}

func (m *MemStore) GetLinkStats(ctx context.Context, linkID int64) (*LinkStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[linkID]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return &LinkStats{
		LinkID:             linkID,
		SellerID:           link.sellerID,
		Title:              link.title,
		URL:                link.url,
		PriceCents:         link.priceCents,
		TotalClicks:        link.totalClicks,
		TotalSales:         link.totalSales,
		TotalEarningsCents: link.totalEarningsCents,
	}, nil
}

func (m *MemStore) GetWallet(ctx context.Context, sellerID int64) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seller, ok := m.sellers[sellerID]
	if !ok {
		return nil, ErrSellerNotFound
	}
	return &Wallet{
		SellerID:            sellerID,
		AvailableFundsCents: seller.fundsCents,
		PayoutMethod:        seller.payoutMethod,
	}, nil
}

func (m *MemStore) ListBySeller(ctx context.Context, sellerID int64, from, to time.Time, limit, offset int) ([]*Activity, int, error) {
	return m.list(func(a *Activity) bool { return a.SellerID == sellerID }, from, to, limit, offset)
}

func (m *MemStore) ListByLink(ctx context.Context, linkID int64, from, to time.Time, limit, offset int) ([]*Activity, int, error) {
	return m.list(func(a *Activity) bool { return a.LinkID != nil && *a.LinkID == linkID }, from, to, limit, offset)
}

func (m *MemStore) list(match func(*Activity) bool, from, to time.Time, limit, offset int) ([]*Activity, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*Activity
	for _, a := range m.activities {
		if match(a) && !a.CreatedAt.Before(from) && a.CreatedAt.Before(to) {
			copied := *a
			all = append(all, &copied)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MemStore) ReconcileSellerFunds(ctx context.Context, sellerID int64, repair bool) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seller, ok := m.sellers[sellerID]
	if !ok {
		return 0, 0, ErrSellerNotFound
	}

	var ledgerFunds int64
	for _, a := range m.activities {
		if a.SellerID != sellerID {
			continue
		}
		switch a.Type {
		case ActivityTypePurchase:
			share, err := money.SellerShare(a.AmountCents, a.FeePercentSnapshot)
			if err != nil {
				return 0, 0, err
			}
			ledgerFunds += share
		case ActivityTypeWithdrawal:
			ledgerFunds -= a.AmountCents
		}
	}

	stored := seller.fundsCents
	if repair && ledgerFunds != stored {
		seller.fundsCents = ledgerFunds
	}
	return ledgerFunds, stored, nil
}

// SetSellerFeePercent updates a seller's live fee rate. Future checkouts
// snapshot the new rate; recorded activities keep theirs.
func (m *MemStore) SetSellerFeePercent(sellerID int64, feePercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seller, ok := m.sellers[sellerID]; ok {
		seller.feePercent = feePercent
	}
}

// CorruptSellerFunds overwrites a seller's stored balance directly,
// bypassing the ledger. Test helper for exercising reconciliation.
func (m *MemStore) CorruptSellerFunds(sellerID, fundsCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seller, ok := m.sellers[sellerID]; ok {
		seller.fundsCents = fundsCents
	}
}
