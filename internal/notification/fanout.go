package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/paygate/internal/metrics"
)

// Job references a committed purchase plus the denormalized display data
// the emails need. Jobs are only enqueued after the ledger transaction has
// committed.
type Job struct {
	ID               string
	ActivityID       int64
	LinkTitle        string
	LinkURL          string
	AmountCents      int64
	SellerShareCents int64
	PayerEmail       *string
	SellerEmail      string
	NotifyOnSale     bool
}

// NewJob builds a fan-out job with a fresh correlation id
func NewJob(activityID int64) Job {
	return Job{ID: uuid.NewString(), ActivityID: activityID}
}

// Fanout delivers buyer and seller emails after successful ledger writes.
// Delivery is best-effort: every failure is logged and swallowed, and
// nothing here can block or fail the webhook response.
type Fanout struct {
	mailer    Mailer
	jobs      chan Job
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewFanout creates a fan-out worker with the given queue capacity
func NewFanout(mailer Mailer, queueSize int) *Fanout {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Fanout{
		mailer: mailer,
		jobs:   make(chan Job, queueSize),
	}
}

// Start launches the background delivery worker
func (f *Fanout) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for {
				select {
				case job, ok := <-f.jobs:
					if !ok {
						return
					}
					f.process(ctx, job)
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Stop closes the queue and waits for in-flight deliveries to finish
func (f *Fanout) Stop() {
	f.stopOnce.Do(func() {
		close(f.jobs)
	})
	f.wg.Wait()
}

// Enqueue hands a job to the worker without ever blocking the caller. When
// the queue is saturated the job is dropped and logged; the sale itself is
// already durably recorded.
func (f *Fanout) Enqueue(job Job) {
	select {
	case f.jobs <- job:
	default:
		metrics.NotificationsDroppedTotal.Inc()
		log.Printf("fanout job=%s activity=%d dropped: queue full", job.ID, job.ActivityID)
	}
}

// process attempts both emails independently; one failing must not prevent
// the other from being attempted
func (f *Fanout) process(ctx context.Context, job Job) {
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if job.PayerEmail != nil && *job.PayerEmail != "" {
		f.send(sendCtx, job, buyerEmail(job, *job.PayerEmail))
	}
	if job.NotifyOnSale && job.SellerEmail != "" {
		f.send(sendCtx, job, sellerEmail(job))
	}
}

func (f *Fanout) send(ctx context.Context, job Job, email Email) {
	if err := f.mailer.Send(ctx, email); err != nil {
		metrics.NotificationsFailedTotal.Inc()
		log.Printf("fanout job=%s activity=%d to=%s delivery failed: %v", job.ID, job.ActivityID, email.To, err)
		return
	}
	metrics.NotificationsSentTotal.Inc()
}

func buyerEmail(job Job, to string) Email {
	return Email{
		To:      to,
		Subject: fmt.Sprintf("Your purchase of %s is ready", job.LinkTitle),
		TemplateData: map[string]string{
			"template":   "buyer_access",
			"link_title": job.LinkTitle,
			"link_url":   job.LinkURL,
			"amount_usd": fmt.Sprintf("%.2f", float64(job.AmountCents)/100),
		},
	}
}

func sellerEmail(job Job) Email {
	return Email{
		To:      job.SellerEmail,
		Subject: fmt.Sprintf("You made a sale: %s", job.LinkTitle),
		TemplateData: map[string]string{
			"template":     "seller_sale",
			"link_title":   job.LinkTitle,
			"earnings_usd": fmt.Sprintf("%.2f", float64(job.SellerShareCents)/100),
		},
	}
}
