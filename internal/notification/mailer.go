package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Email is the payload handed to the email-sending collaborator
type Email struct {
	To           string            `json:"to"`
	Subject      string            `json:"subject"`
	TemplateData map[string]string `json:"template_data"`
}

// Mailer delivers a single email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// APIMailer delivers email through an HTTP email API
type APIMailer struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

// NewAPIMailer creates a mailer backed by an HTTP email API
func NewAPIMailer(url, apiKey, from string) *APIMailer {
	return &APIMailer{
		url:    url,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the email to the API and fails on any non-2xx status
func (m *APIMailer) Send(ctx context.Context, email Email) error {
	payload := map[string]interface{}{
		"from":          m.from,
		"to":            email.To,
		"subject":       email.Subject,
		"template_data": email.TemplateData,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}

// LogMailer logs emails instead of sending them (local development)
type LogMailer struct{}

// Send logs the email and always succeeds
func (m *LogMailer) Send(ctx context.Context, email Email) error {
	log.Printf("mail to=%s subject=%q data=%v", email.To, email.Subject, email.TemplateData)
	return nil
}
