package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDirectory struct {
	email string
	name  string
	err   error
}

func (d *fakeDirectory) LookupUserEmail(_ context.Context, _ string) (string, string, error) {
	return d.email, d.name, d.err
}

type fakeMailer struct {
	to      string
	subject string
	html    string
	calls   int
	err     error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	m.calls++
	m.to = to
	m.subject = subject
	m.html = html
	return m.err
}

func (m *fakeMailer) Name() string { return "fake" }

func TestEmailNotifier(t *testing.T) {
	t.Parallel()

	t.Run("ship request resolves recipient and links the order", func(t *testing.T) {
		mailer := &fakeMailer{}
		dir := &fakeDirectory{email: "seller@example.com", name: "Ken"}
		n := NewEmailNotifier(mailer, dir, "https://cards.example", testLogger())

		n.ShipRequest(context.Background(), "seller-1", "Shohei Ohtani", "order-1")

		if mailer.calls != 1 {
			t.Fatalf("expected one send, got %d", mailer.calls)
		}
		if mailer.to != "seller@example.com" {
			t.Fatalf("expected resolved email, got %q", mailer.to)
		}
		if !strings.Contains(mailer.html, "Ken") {
			t.Fatalf("expected greeting with name, got %q", mailer.html)
		}
		if !strings.Contains(mailer.html, "https://cards.example/orders/sell/order-1") {
			t.Fatalf("expected order link, got %q", mailer.html)
		}
	})

	t.Run("missing name falls back to a generic greeting", func(t *testing.T) {
		mailer := &fakeMailer{}
		dir := &fakeDirectory{email: "buyer@example.com"}
		n := NewEmailNotifier(mailer, dir, "https://cards.example", testLogger())

		n.OrderConfirmed(context.Background(), "buyer-1", "Shohei Ohtani", 9000, "order-1")

		if !strings.Contains(mailer.html, "Collector") {
			t.Fatalf("expected fallback greeting, got %q", mailer.html)
		}
	})

	t.Run("lookup failure is swallowed", func(t *testing.T) {
		mailer := &fakeMailer{}
		dir := &fakeDirectory{err: errors.New("no row")}
		n := NewEmailNotifier(mailer, dir, "https://cards.example", testLogger())

		n.FundsReleased(context.Background(), "seller-1", "Shohei Ohtani", "order-1")

		if mailer.calls != 0 {
			t.Fatalf("expected no send after failed lookup, got %d", mailer.calls)
		}
	})

	t.Run("shipment notice omits tracking when absent", func(t *testing.T) {
		mailer := &fakeMailer{}
		dir := &fakeDirectory{email: "buyer@example.com", name: "Aya"}
		n := NewEmailNotifier(mailer, dir, "https://cards.example", testLogger())

		n.OrderShipped(context.Background(), "buyer-1", "Shohei Ohtani", "", "", "order-1")
		if strings.Contains(mailer.html, "Tracking") {
			t.Fatalf("expected no tracking block, got %q", mailer.html)
		}

		n.OrderShipped(context.Background(), "buyer-1", "Shohei Ohtani", "yamato", "TRK-1", "order-1")
		if !strings.Contains(mailer.html, "yamato TRK-1") {
			t.Fatalf("expected tracking block, got %q", mailer.html)
		}
	})
}

func TestAPIMailer_Send(t *testing.T) {
	t.Parallel()

	t.Run("posts the message with bearer auth", func(t *testing.T) {
		var (
			gotAuth string
			gotBody map[string]any
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		m := NewAPIMailer(srv.URL, "re_key", "Stadium Card <noreply@example.com>")
		if err := m.Send(context.Background(), "to@example.com", "Hello", "<p>hi</p>"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if gotAuth != "Bearer re_key" {
			t.Fatalf("expected bearer auth, got %q", gotAuth)
		}
		if gotBody["subject"] != "Hello" {
			t.Fatalf("expected subject, got %v", gotBody["subject"])
		}
		to, _ := gotBody["to"].([]any)
		if len(to) != 1 || to[0] != "to@example.com" {
			t.Fatalf("expected recipient, got %v", gotBody["to"])
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"message":"invalid key"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		m := NewAPIMailer(srv.URL, "bad", "noreply@example.com")
		if err := m.Send(context.Background(), "to@example.com", "Hello", "<p>hi</p>"); err == nil {
			t.Fatalf("expected error for 401 response")
		}
	})
}
