package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// EventTypeCheckoutCompleted is the only event type that settles a
// purchase; every other type is acknowledged as a no-op
const EventTypeCheckoutCompleted = "checkout.session.completed"

// Event is the payment processor's webhook envelope
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the completed-checkout object inside the envelope.
// Settlement parameters travel in the metadata the checkout was created
// with.
type CheckoutSession struct {
	PaymentIntent string            `json:"payment_intent"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

// SettlementEvent holds the parameters extracted from a confirmed payment.
// It is transient input to the ledger, never persisted as its own entity.
type SettlementEvent struct {
	ExternalPaymentID string
	LinkID            int64
	BasePriceCents    int64
	FeePercent        float64
	PayerEmail        *string
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body against the
// shared secret using a constant-time compare
func VerifySignature(secret, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex HMAC-SHA256 signature for a payload. Used by tests
// and by processor simulators.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseEvent decodes the envelope, rejecting unparseable payloads
func parseEvent(body []byte) (*Event, error) {
	event := &Event{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return event, nil
}

// extractSettlement pulls the settlement parameters out of the session
// metadata. Retrying cannot fix missing fields, so failures here are
// terminal.
func extractSettlement(session CheckoutSession, defaultFeePercent float64) (*SettlementEvent, error) {
	if session.PaymentIntent == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrMalformedEvent)
	}

	rawLink, ok := session.Metadata["link_id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing link_id", ErrMalformedEvent)
	}
	linkID, err := strconv.ParseInt(rawLink, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad link_id %q", ErrMalformedEvent, rawLink)
	}

	rawPrice, ok := session.Metadata["base_price_cents"]
	if !ok {
		return nil, fmt.Errorf("%w: missing base_price_cents", ErrMalformedEvent)
	}
	basePrice, err := strconv.ParseInt(rawPrice, 10, 64)
	if err != nil || basePrice < 0 {
		return nil, fmt.Errorf("%w: bad base_price_cents %q", ErrMalformedEvent, rawPrice)
	}

	// The fee snapshot was written into the metadata at checkout time; a
	// checkout created before fees were configurable falls back to the
	// platform default
	feePercent := defaultFeePercent
	if rawFee, ok := session.Metadata["fee_percent"]; ok {
		parsed, err := strconv.ParseFloat(rawFee, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			return nil, fmt.Errorf("%w: bad fee_percent %q", ErrMalformedEvent, rawFee)
		}
		feePercent = parsed
	}

	settlement := &SettlementEvent{
		ExternalPaymentID: session.PaymentIntent,
		LinkID:            linkID,
		BasePriceCents:    basePrice,
		FeePercent:        feePercent,
	}
	if session.CustomerEmail != "" {
		email := session.CustomerEmail
		settlement.PayerEmail = &email
	}
	return settlement, nil
}
