package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/paygate/internal/ledger"
	"github.com/fkhayef/paygate/internal/notification"
)

const testSecret = "whsec_test"

type captureNotifier struct {
	mu   sync.Mutex
	jobs []notification.Job
}

func (n *captureNotifier) Enqueue(job notification.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.jobs)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *ledger.MemStore, *captureNotifier) {
	t.Helper()
	store := ledger.NewMemStore()
	payout := "bank_transfer"
	store.AddSeller(1, "seller@example.com", 20, &payout, true)
	store.AddLink(10, 1, "Preset Pack", "https://paygate.local/l/abc123", 2000)
	notifier := &captureNotifier{}
	dispatcher := NewDispatcher(testSecret, 20, ledger.NewService(store), notifier)
	return dispatcher, store, notifier
}

func checkoutEvent(t *testing.T, eventType, paymentID string, metadata map[string]string) []byte {
	t.Helper()
	event := map[string]interface{}{
		"id":      "evt_1",
		"type":    eventType,
		"created": 1700000000,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"payment_intent": paymentID,
				"customer_email": "buyer@example.com",
				"metadata":       metadata,
			},
		},
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func validMetadata() map[string]string {
	return map[string]string{
		"link_id":          "10",
		"base_price_cents": "2000",
		"fee_percent":      "20",
	}
}

func TestProcessSettlesPurchase(t *testing.T) {
	dispatcher, store, notifier := newTestDispatcher(t)
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_abc", validMetadata())

	outcome, err := dispatcher.Process(context.Background(), body, Sign([]byte(testSecret), body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome.Status)
	assert.Equal(t, "evt_1", outcome.EventID)
	require.True(t, outcome.Receipt.Created)
	assert.Equal(t, int64(1800), outcome.Receipt.SellerShareCents)

	stats, err := store.GetLinkStats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSales)
	assert.Equal(t, int64(2000), stats.TotalEarningsCents)

	wallet, err := store.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), wallet.AvailableFundsCents)

	require.Equal(t, 1, notifier.count())
	job := notifier.jobs[0]
	assert.Equal(t, "Preset Pack", job.LinkTitle)
	assert.Equal(t, "seller@example.com", job.SellerEmail)
	assert.Equal(t, int64(1800), job.SellerShareCents)
	require.NotNil(t, job.PayerEmail)
	assert.Equal(t, "buyer@example.com", *job.PayerEmail)
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	dispatcher, store, notifier := newTestDispatcher(t)
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_abc", validMetadata())
	signature := Sign([]byte(testSecret), body)

	first, err := dispatcher.Process(context.Background(), body, signature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, first.Status)

	second, err := dispatcher.Process(context.Background(), body, signature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Status)
	assert.Equal(t, first.Receipt.Activity.ID, second.Receipt.Activity.ID)

	wallet, err := store.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), wallet.AvailableFundsCents)

	// Fan-out runs once per real-world payment, never on redelivery
	assert.Equal(t, 1, notifier.count())
}

func TestProcessConcurrentRedelivery(t *testing.T) {
	dispatcher, store, notifier := newTestDispatcher(t)
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_race", validMetadata())
	signature := Sign([]byte(testSecret), body)

	const deliveries = 12
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := dispatcher.Process(context.Background(), body, signature); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	stats, err := store.GetLinkStats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSales)
	assert.Equal(t, 1, notifier.count())
}

func TestProcessInvalidSignature(t *testing.T) {
	dispatcher, store, notifier := newTestDispatcher(t)
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_abc", validMetadata())

	_, err := dispatcher.Process(context.Background(), body, "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = dispatcher.Process(context.Background(), body, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Zero side effects
	stats, err := store.GetLinkStats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalSales)
	assert.Equal(t, 0, notifier.count())
}

func TestProcessIgnoresIrrelevantEventTypes(t *testing.T) {
	dispatcher, store, notifier := newTestDispatcher(t)

	for _, eventType := range []string{"invoice.paid", "charge.refunded", "customer.created"} {
		body := checkoutEvent(t, eventType, "pi_other", validMetadata())
		outcome, err := dispatcher.Process(context.Background(), body, Sign([]byte(testSecret), body))
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome.Status)
	}

	stats, err := store.GetLinkStats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalSales)
	assert.Equal(t, 0, notifier.count())
}

func TestProcessMalformedEvents(t *testing.T) {
	dispatcher, store, notifier := newTestDispatcher(t)

	malformed := []map[string]string{
		{"base_price_cents": "2000"},                            // missing link_id
		{"link_id": "10"},                                       // missing price
		{"link_id": "abc", "base_price_cents": "2000"},          // bad link_id
		{"link_id": "10", "base_price_cents": "-5"},             // negative price
		{"link_id": "10", "base_price_cents": "2000", "fee_percent": "150"}, // bad fee
	}
	for _, metadata := range malformed {
		body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_bad", metadata)
		_, err := dispatcher.Process(context.Background(), body, Sign([]byte(testSecret), body))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	}

	// Missing payment id
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "", validMetadata())
	_, err := dispatcher.Process(context.Background(), body, Sign([]byte(testSecret), body))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	// Unparseable JSON
	raw := []byte("{not json")
	_, err = dispatcher.Process(context.Background(), raw, Sign([]byte(testSecret), raw))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	stats, err := store.GetLinkStats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalSales)
	assert.Equal(t, 0, notifier.count())
}

func TestProcessUnknownLink(t *testing.T) {
	dispatcher, _, notifier := newTestDispatcher(t)

	metadata := validMetadata()
	metadata["link_id"] = "404"
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_404", metadata)

	_, err := dispatcher.Process(context.Background(), body, Sign([]byte(testSecret), body))
	assert.ErrorIs(t, err, ErrUnknownLink)
	assert.Equal(t, 0, notifier.count())
}

func TestProcessDefaultsFeePercent(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t)

	metadata := map[string]string{"link_id": "10", "base_price_cents": "1000"}
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_nofee", metadata)

	outcome, err := dispatcher.Process(context.Background(), body, Sign([]byte(testSecret), body))
	require.NoError(t, err)
	assert.Equal(t, 20.0, outcome.Receipt.Activity.FeePercentSnapshot)
	assert.Equal(t, int64(900), outcome.Receipt.SellerShareCents)
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("secret")
	body := []byte(`{"id":"evt_1"}`)

	assert.True(t, VerifySignature(secret, body, Sign(secret, body)))
	assert.False(t, VerifySignature(secret, body, Sign([]byte("other"), body)))
	assert.False(t, VerifySignature(secret, []byte(`tampered`), Sign(secret, body)))
	assert.False(t, VerifySignature(secret, body, ""))
}

// storage failure must surface as a retryable error, never be swallowed
type failingStore struct {
	ledger.Store
}

var errStorageDown = errors.New("storage unavailable")

func (f *failingStore) CreatePurchase(ctx context.Context, params ledger.PurchaseParams) (*ledger.PurchaseReceipt, error) {
	return nil, errStorageDown
}

func TestProcessTransientStorageFailure(t *testing.T) {
	store := ledger.NewMemStore()
	notifier := &captureNotifier{}
	dispatcher := NewDispatcher(testSecret, 20, ledger.NewService(&failingStore{Store: store}), notifier)

	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_down", validMetadata())
	_, err := dispatcher.Process(context.Background(), body, Sign([]byte(testSecret), body))
	require.Error(t, err)
	assert.ErrorIs(t, err, errStorageDown)
	assert.NotErrorIs(t, err, ErrMalformedEvent)
	assert.Equal(t, 0, notifier.count())
}
