package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fkhayef/paygate/internal/ledger"
)

func newTestHandler(t *testing.T) (*Handler, *ledger.MemStore) {
	t.Helper()
	store := ledger.NewMemStore()
	payout := "bank_transfer"
	store.AddSeller(1, "seller@example.com", 20, &payout, false)
	store.AddLink(10, 1, "Preset Pack", "https://paygate.local/l/abc123", 2000)
	dispatcher := NewDispatcher(testSecret, 20, ledger.NewService(store), &captureNotifier{})
	return NewHandler(dispatcher), store
}

func deliver(t *testing.T, handler *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payment", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandlePaymentSettles(t *testing.T) {
	handler, store := newTestHandler(t)
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_http", validMetadata())

	rec := deliver(t, handler, body, Sign([]byte(testSecret), body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Received bool   `json:"received"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !envelope.Data.Received || envelope.Data.Status != OutcomeSettled {
		t.Fatalf("unexpected ack: %+v", envelope.Data)
	}

	stats, err := store.GetLinkStats(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSales != 1 {
		t.Fatalf("expected 1 sale, got %d", stats.TotalSales)
	}
}

func TestHandlePaymentRejectsBadSignature(t *testing.T) {
	handler, store := newTestHandler(t)
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_http", validMetadata())

	rec := deliver(t, handler, body, "bad-signature")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	stats, err := store.GetLinkStats(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSales != 0 {
		t.Fatalf("rejected delivery must not settle, got %d sales", stats.TotalSales)
	}
}

func TestHandlePaymentAcknowledgesMalformed(t *testing.T) {
	handler, _ := newTestHandler(t)
	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_http", map[string]string{})

	rec := deliver(t, handler, body, Sign([]byte(testSecret), body))
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed events are acknowledged, expected 200, got %d", rec.Code)
	}
}

func TestHandlePaymentIgnoresOtherEventTypes(t *testing.T) {
	handler, _ := newTestHandler(t)
	body := checkoutEvent(t, "charge.refunded", "pi_http", validMetadata())

	rec := deliver(t, handler, body, Sign([]byte(testSecret), body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandlePaymentTransientFailureIsRetryable(t *testing.T) {
	store := ledger.NewMemStore()
	dispatcher := NewDispatcher(testSecret, 20, ledger.NewService(&failingStore{Store: store}), &captureNotifier{})
	handler := NewHandler(dispatcher)

	body := checkoutEvent(t, EventTypeCheckoutCompleted, "pi_http", validMetadata())
	rec := deliver(t, handler, body, Sign([]byte(testSecret), body))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("transient failures must fail the delivery, expected 503, got %d", rec.Code)
	}
}
