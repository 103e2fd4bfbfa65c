package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/paygate/internal/money"
)

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	store.AddSeller(1, "seller@example.com", 20, strPtr("bank_transfer"), true)
	store.AddLink(10, 1, "Preset Pack", "https://paygate.local/l/abc123", 2000)
	return NewService(store), store
}

func purchaseInput(paymentID string) RecordPurchaseInput {
	return RecordPurchaseInput{
		LinkID:             10,
		ExternalPaymentID:  paymentID,
		BasePriceCents:     2000,
		FeePercentSnapshot: 20,
		PayerEmail:         strPtr("buyer@example.com"),
	}
}

func TestRecordPurchaseEndToEnd(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	// $20.00 link at the default 20% fee: buyer pays $22.00, seller nets $18.00
	total, err := money.TotalCharge(2000, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2200), total)

	receipt, err := service.RecordPurchase(ctx, purchaseInput("pi_abc"))
	require.NoError(t, err)
	require.True(t, receipt.Created)
	assert.Equal(t, int64(1800), receipt.SellerShareCents)
	assert.Equal(t, ActivityTypePurchase, receipt.Activity.Type)
	assert.Equal(t, int64(2000), receipt.Activity.AmountCents)
	assert.Equal(t, 20.0, receipt.Activity.FeePercentSnapshot)

	stats, err := service.GetLinkStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSales)
	assert.Equal(t, int64(2000), stats.TotalEarningsCents)

	wallet, err := service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), wallet.AvailableFundsCents)

	// A redelivered webhook leaves every value unchanged
	dup, err := service.RecordPurchase(ctx, purchaseInput("pi_abc"))
	require.NoError(t, err)
	assert.False(t, dup.Created)
	assert.Equal(t, receipt.Activity.ID, dup.Activity.ID)

	stats, err = service.GetLinkStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSales)
	assert.Equal(t, int64(2000), stats.TotalEarningsCents)

	wallet, err = service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), wallet.AvailableFundsCents)
}

func TestRecordPurchaseConcurrentRedelivery(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	const deliveries = 16
	var wg sync.WaitGroup
	created := make(chan bool, deliveries)

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := service.RecordPurchase(ctx, purchaseInput("pi_race"))
			if err != nil {
				t.Error(err)
				return
			}
			created <- receipt.Created
		}()
	}
	wg.Wait()
	close(created)

	var createdCount int
	for c := range created {
		if c {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount, "exactly one delivery should create the record")

	stats, err := service.GetLinkStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSales)

	wallet, err := service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), wallet.AvailableFundsCents)
}

func TestRecordPurchaseConcurrentDistinctPayments(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	const purchases = 25
	var wg sync.WaitGroup
	for i := 0; i < purchases; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := service.RecordPurchase(ctx, purchaseInput(fmt.Sprintf("pi_%03d", n)))
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	stats, err := service.GetLinkStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(purchases), stats.TotalSales)
	assert.Equal(t, int64(purchases*2000), stats.TotalEarningsCents)

	wallet, err := service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(purchases*1800), wallet.AvailableFundsCents)
}

func TestRecordPurchaseValidation(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.RecordPurchase(ctx, RecordPurchaseInput{LinkID: 10, BasePriceCents: 2000, FeePercentSnapshot: 20})
	assert.ErrorIs(t, err, ErrMissingPaymentID)

	in := purchaseInput("pi_badfee")
	in.FeePercentSnapshot = 120
	_, err = service.RecordPurchase(ctx, in)
	assert.ErrorIs(t, err, money.ErrInvalidFeePercent)

	in = purchaseInput("pi_nolink")
	in.LinkID = 999
	_, err = service.RecordPurchase(ctx, in)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	// Rejected events leave no trace
	wallet, err := service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.AvailableFundsCents)

	_, total, err := service.ListSellerActivity(ctx, 1, time.Time{}, time.Time{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestRecordWithdrawal(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.RecordPurchase(ctx, purchaseInput("pi_1"))
	require.NoError(t, err)

	// 1800 available; overdrawing fails and mutates nothing
	_, err = service.RecordWithdrawal(ctx, 1, 1801)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	wallet, err := service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), wallet.AvailableFundsCents)

	activity, err := service.RecordWithdrawal(ctx, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, ActivityTypeWithdrawal, activity.Type)
	assert.Equal(t, int64(1000), activity.AmountCents)

	wallet, err = service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(800), wallet.AvailableFundsCents)

	_, err = service.RecordWithdrawal(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = service.RecordWithdrawal(ctx, 1, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordWithdrawalWalletNotConfigured(t *testing.T) {
	store := NewMemStore()
	store.AddSeller(2, "nopayout@example.com", 20, nil, true)
	store.AddLink(20, 2, "Pack", "https://paygate.local/l/x", 1000)
	service := NewService(store)
	ctx := context.Background()

	in := purchaseInput("pi_x")
	in.LinkID = 20
	in.BasePriceCents = 1000
	_, err := service.RecordPurchase(ctx, in)
	require.NoError(t, err)

	_, err = service.RecordWithdrawal(ctx, 2, 100)
	assert.ErrorIs(t, err, ErrWalletNotConfigured)

	wallet, err := service.GetWallet(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(900), wallet.AvailableFundsCents)
}

func TestConcurrentWithdrawalsNoDoubleSpend(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.RecordPurchase(ctx, purchaseInput("pi_seed"))
	require.NoError(t, err)

	// 1800 available, ten concurrent attempts of 500 each: only three can win
	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.RecordWithdrawal(ctx, 1, 500)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 3, succeeded)

	wallet, err := service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), wallet.AvailableFundsCents)
}

func TestConcurrentClicks(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	const clicks = 200
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := service.RecordClick(ctx, 10); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	stats, err := service.GetLinkStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), stats.TotalClicks)
}

func TestCheckUnlock(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	activity, err := service.CheckUnlock(ctx, "pi_pending")
	require.NoError(t, err)
	assert.Nil(t, activity)

	_, err = service.RecordPurchase(ctx, purchaseInput("pi_pending"))
	require.NoError(t, err)

	activity, err = service.CheckUnlock(ctx, "pi_pending")
	require.NoError(t, err)
	require.NotNil(t, activity)
	assert.Equal(t, "pi_pending", *activity.ExternalPaymentID)

	_, err = service.CheckUnlock(ctx, "")
	assert.ErrorIs(t, err, ErrMissingPaymentID)
}

// Balance conservation: after every step of a random purchase/withdrawal
// interleaving, available funds equal the sum of seller shares minus the
// sum of withdrawals, and a ledger replay reproduces the same number.
func TestBalanceConservationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		store := NewMemStore()
		store.AddSeller(1, "seller@example.com", 20, strPtr("bank_transfer"), true)
		store.AddLink(10, 1, "Pack", "https://paygate.local/l/p", 2000)
		service := NewService(store)
		ctx := context.Background()

		var expected int64
		for step := 0; step < 50; step++ {
			if rng.Intn(3) > 0 {
				base := int64(500 + rng.Intn(5000))
				fee := float64(rng.Intn(41)) // snapshot rates vary per checkout
				in := RecordPurchaseInput{
					LinkID:             10,
					ExternalPaymentID:  fmt.Sprintf("pi_%d_%d", run, step),
					BasePriceCents:     base,
					FeePercentSnapshot: fee,
				}
				receipt, err := service.RecordPurchase(ctx, in)
				require.NoError(t, err)
				share, err := money.SellerShare(base, fee)
				require.NoError(t, err)
				require.Equal(t, share, receipt.SellerShareCents)
				expected += share
			} else {
				amount := int64(1 + rng.Intn(2000))
				_, err := service.RecordWithdrawal(ctx, 1, amount)
				if err == nil {
					expected -= amount
				} else {
					require.ErrorIs(t, err, ErrInsufficientFunds)
				}
			}

			wallet, err := service.GetWallet(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, expected, wallet.AvailableFundsCents)
			require.GreaterOrEqual(t, wallet.AvailableFundsCents, int64(0))

			report, err := service.Reconcile(ctx, 1, false)
			require.NoError(t, err)
			require.Equal(t, int64(0), report.DriftCents)
		}
	}
}

// The fee snapshot on a recorded purchase is immune to later changes in the
// seller's live rate: replaying the ledger reproduces the stored balance no
// matter what the current rate is.
func TestFeeSnapshotImmutability(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	in := purchaseInput("pi_snap")
	in.FeePercentSnapshot = 20
	receipt, err := service.RecordPurchase(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 20.0, receipt.Activity.FeePercentSnapshot)

	// Simulate the seller changing their live rate afterwards
	store.SetSellerFeePercent(1, 35)

	unlocked, err := service.CheckUnlock(ctx, "pi_snap")
	require.NoError(t, err)
	assert.Equal(t, 20.0, unlocked.FeePercentSnapshot)

	report, err := service.Reconcile(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), report.LedgerFundsCents)
	assert.Equal(t, int64(0), report.DriftCents)
}

func TestReconcileRepairsDrift(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	_, err := service.RecordPurchase(ctx, purchaseInput("pi_drift"))
	require.NoError(t, err)

	store.CorruptSellerFunds(1, 9999)

	report, err := service.Reconcile(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), report.LedgerFundsCents)
	assert.Equal(t, int64(9999), report.StoredFundsCents)
	assert.Equal(t, int64(8199), report.DriftCents)
	assert.False(t, report.Repaired)

	report, err = service.Reconcile(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, report.Repaired)

	wallet, err := service.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), wallet.AvailableFundsCents)
}

func TestListActivityRange(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := service.RecordPurchase(ctx, purchaseInput(fmt.Sprintf("pi_list_%d", i)))
		require.NoError(t, err)
	}
	_, err := service.RecordWithdrawal(ctx, 1, 100)
	require.NoError(t, err)

	activities, total, err := service.ListSellerActivity(ctx, 1, time.Time{}, time.Time{}, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, activities, 3)

	activities, total, err = service.ListLinkActivity(ctx, 10, time.Time{}, time.Time{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, activities, 5)

	// A range in the past excludes everything
	past := time.Now().UTC().Add(-time.Hour)
	_, total, err = service.ListSellerActivity(ctx, 1, past.Add(-time.Hour), past, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
