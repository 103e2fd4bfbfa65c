package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubMailer struct {
	mu     sync.Mutex
	sent   []Email
	failTo string // deliveries to this address fail
}

func (m *stubMailer) Send(ctx context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if email.To == m.failTo {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *stubMailer) delivered() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}

func buyer(email string) *string { return &email }

func testJob() Job {
	job := NewJob(42)
	job.LinkTitle = "Preset Pack"
	job.LinkURL = "https://paygate.local/l/abc123"
	job.AmountCents = 2000
	job.SellerShareCents = 1800
	job.PayerEmail = buyer("buyer@example.com")
	job.SellerEmail = "seller@example.com"
	job.NotifyOnSale = true
	return job
}

func waitForDeliveries(t *testing.T, mailer *stubMailer, want int) []Email {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sent := mailer.delivered(); len(sent) >= want {
			return sent
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d deliveries, got %d", want, len(mailer.delivered()))
	return nil
}

func TestFanoutSendsBuyerAndSellerEmails(t *testing.T) {
	mailer := &stubMailer{}
	fanout := NewFanout(mailer, 8)
	fanout.Start(context.Background())
	defer fanout.Stop()

	fanout.Enqueue(testJob())

	sent := waitForDeliveries(t, mailer, 2)
	recipients := map[string]bool{}
	for _, e := range sent {
		recipients[e.To] = true
	}
	if !recipients["buyer@example.com"] || !recipients["seller@example.com"] {
		t.Fatalf("unexpected recipients: %v", recipients)
	}
}

func TestFanoutRespectsSellerPreference(t *testing.T) {
	mailer := &stubMailer{}
	fanout := NewFanout(mailer, 8)
	fanout.Start(context.Background())

	job := testJob()
	job.NotifyOnSale = false
	fanout.Enqueue(job)
	fanout.Stop()

	sent := mailer.delivered()
	if len(sent) != 1 {
		t.Fatalf("expected only the buyer email, got %d deliveries", len(sent))
	}
	if sent[0].To != "buyer@example.com" {
		t.Fatalf("unexpected recipient %s", sent[0].To)
	}
}

func TestFanoutSkipsBuyerWithoutEmail(t *testing.T) {
	mailer := &stubMailer{}
	fanout := NewFanout(mailer, 8)
	fanout.Start(context.Background())

	job := testJob()
	job.PayerEmail = nil
	fanout.Enqueue(job)
	fanout.Stop()

	sent := mailer.delivered()
	if len(sent) != 1 || sent[0].To != "seller@example.com" {
		t.Fatalf("expected only the seller email, got %v", sent)
	}
}

// One failing delivery must not prevent the other from being attempted,
// and no failure may escape the worker.
func TestFanoutFailureIsolation(t *testing.T) {
	mailer := &stubMailer{failTo: "buyer@example.com"}
	fanout := NewFanout(mailer, 8)
	fanout.Start(context.Background())

	fanout.Enqueue(testJob())
	fanout.Stop()

	sent := mailer.delivered()
	if len(sent) != 1 || sent[0].To != "seller@example.com" {
		t.Fatalf("seller email should still be attempted, got %v", sent)
	}
}

func TestFanoutEnqueueNeverBlocks(t *testing.T) {
	mailer := &stubMailer{}
	fanout := NewFanout(mailer, 1)
	// Worker not started: the queue fills and further jobs are dropped

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			fanout.Enqueue(testJob())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a saturated queue")
	}
}
