package webhook

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fkhayef/paygate/internal/ledger"
	"github.com/fkhayef/paygate/internal/metrics"
	"github.com/fkhayef/paygate/internal/notification"
)

// Common errors
var (
	// ErrInvalidSignature is terminal and security-relevant: the event is
	// never applied
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrMalformedEvent is terminal: redelivery cannot fix missing fields
	ErrMalformedEvent = errors.New("malformed webhook event")

	// ErrUnknownLink is terminal: the event references content this system
	// has never seen
	ErrUnknownLink = errors.New("webhook event references unknown link")
)

// Outcome statuses reported back to the transport layer
const (
	OutcomeIgnored   = "ignored"
	OutcomeSettled   = "settled"
	OutcomeDuplicate = "duplicate"
)

// Notifier receives fan-out jobs after a settlement commits. Enqueue must
// never block.
type Notifier interface {
	Enqueue(job notification.Job)
}

// Outcome describes how an authentic, well-formed event was handled
type Outcome struct {
	Status  string
	EventID string
	Receipt *ledger.PurchaseReceipt
}

// Dispatcher is the single entry point that turns a verified payment
// confirmation into a ledger write, exactly once. It is safe to invoke
// concurrently and repeatedly with the same event; deduplication is
// delegated to the ledger so concurrent redeliveries stay safe.
type Dispatcher struct {
	secret            []byte
	defaultFeePercent float64
	ledger            *ledger.Service
	notifier          Notifier
}

// NewDispatcher creates a new webhook dispatcher
func NewDispatcher(secret string, defaultFeePercent float64, ledgerService *ledger.Service, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		secret:            []byte(secret),
		defaultFeePercent: defaultFeePercent,
		ledger:            ledgerService,
		notifier:          notifier,
	}
}

// Process verifies, filters, extracts and dispatches one webhook delivery.
//
// Error semantics: ErrInvalidSignature, ErrMalformedEvent and
// ErrUnknownLink are terminal (the transport acknowledges, the event is
// dropped); any other error is transient and must surface as a failure
// response so the processor redelivers.
func (d *Dispatcher) Process(ctx context.Context, body []byte, signature string) (*Outcome, error) {
	metrics.WebhookEventsTotal.Inc()
	start := time.Now()
	defer func() {
		metrics.WebhookProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	if !VerifySignature(d.secret, body, signature) {
		metrics.WebhookInvalidSignatureTotal.Inc()
		return nil, ErrInvalidSignature
	}

	event, err := parseEvent(body)
	if err != nil {
		metrics.WebhookMalformedTotal.Inc()
		return nil, err
	}

	// The processor redelivers many unrelated event types to the same
	// endpoint; everything but a completed checkout is a no-op, not an
	// error
	if event.Type != EventTypeCheckoutCompleted {
		metrics.WebhookIgnoredTotal.Inc()
		return &Outcome{Status: OutcomeIgnored, EventID: event.ID}, nil
	}

	settlement, err := extractSettlement(event.Data.Object, d.defaultFeePercent)
	if err != nil {
		metrics.WebhookMalformedTotal.Inc()
		return nil, err
	}

	receipt, err := d.ledger.RecordPurchase(ctx, ledger.RecordPurchaseInput{
		LinkID:             settlement.LinkID,
		ExternalPaymentID:  settlement.ExternalPaymentID,
		BasePriceCents:     settlement.BasePriceCents,
		FeePercentSnapshot: settlement.FeePercent,
		PayerEmail:         settlement.PayerEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrLinkNotFound):
			metrics.WebhookMalformedTotal.Inc()
			return nil, ErrUnknownLink
		case errors.Is(err, ledger.ErrMissingPaymentID):
			metrics.WebhookMalformedTotal.Inc()
			return nil, ErrMalformedEvent
		default:
			// Transient persistence failure: loud and retryable. Silently
			// swallowing a failed ledger write would leave a paid buyer
			// locked out and the seller uncredited.
			return nil, err
		}
	}

	outcome := &Outcome{EventID: event.ID, Receipt: receipt}
	if !receipt.Created {
		metrics.WebhookDuplicateTotal.Inc()
		outcome.Status = OutcomeDuplicate
		return outcome, nil
	}

	metrics.WebhookSettledTotal.Inc()
	outcome.Status = OutcomeSettled
	d.enqueueFanout(receipt)
	return outcome, nil
}

// enqueueFanout hands the committed receipt to the notification worker.
// This runs strictly after the ledger transaction commits and only on
// first settlement, never on redelivery.
func (d *Dispatcher) enqueueFanout(receipt *ledger.PurchaseReceipt) {
	if d.notifier == nil {
		return
	}
	job := notification.NewJob(receipt.Activity.ID)
	job.LinkTitle = receipt.LinkTitle
	job.LinkURL = receipt.LinkURL
	job.AmountCents = receipt.Activity.AmountCents
	job.SellerShareCents = receipt.SellerShareCents
	job.PayerEmail = receipt.Activity.PayerEmail
	job.SellerEmail = receipt.SellerEmail
	job.NotifyOnSale = receipt.NotifyOnSale
	d.notifier.Enqueue(job)
	log.Printf("fanout enqueued job=%s activity=%d", job.ID, job.ActivityID)
}
