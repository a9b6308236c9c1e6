package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIMailer delivers email through an HTTP mail API (Resend-compatible
// endpoint: JSON body, bearer-token auth).
type APIMailer struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

func NewAPIMailer(url, apiKey, from string) *APIMailer {
	return &APIMailer{
		url:    url,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to the mail API.
func (m *APIMailer) Send(ctx context.Context, to, subject, html string) error {
	payload := map[string]any{
		"from":    m.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mail: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns the provider identifier.
func (m *APIMailer) Name() string {
	return "mail-api"
}
