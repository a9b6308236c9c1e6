package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/app"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/clock"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// PaymentProcessor is the minimal interface needed to act on a verified
// payment event.
type PaymentProcessor interface {
	ProcessPaymentConfirmed(ctx context.Context, in app.PaymentConfirmedInput) (app.TransferResult, error)
}

// EventGuard is the optional fast-path dedup for redelivered webhook events.
// Implementations must fail open: an unreachable guard never blocks a
// delivery, because the workflow is idempotent on its own.
type EventGuard interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// WebhookConfig configures payment webhook verification.
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		OrderID    string `json:"order_id"`
		ListingID  string `json:"listing_id"`
		PaymentRef string `json:"payment_ref"`
	} `json:"data"`
}

// HandlePaymentWebhook returns the handler for inbound payment-processor
// events. An unverifiable signature is rejected before any side effect.
// Once verified, a checkout.completed event always acks 200 unless the
// order itself cannot be resolved: partial downstream failures are the
// reconciliation procedure's job, and a 5xx would only trigger redeliveries
// of an already-accepted payment.
func HandlePaymentWebhook(svc PaymentProcessor, guard EventGuard, cfg WebhookConfig, clk clock.Clock, logger *slog.Logger) http.HandlerFunc {
	log := logger.With(slog.String("component", "webhook"))
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "cannot read body")
			return
		}

		sig := r.Header.Get(signatureHeader)
		if sig == "" {
			metrics.WebhookEvents.WithLabelValues("unsigned").Inc()
			writeError(w, http.StatusBadRequest, codeInvalidSignature, "missing signature")
			return
		}
		if err := verifySignature(sig, body, cfg.Secret, clk.Now(), cfg.Tolerance); err != nil {
			metrics.WebhookEvents.WithLabelValues("rejected").Inc()
			log.Warn("webhook signature rejected", slog.String("error", err.Error()))
			writeError(w, http.StatusBadRequest, codeInvalidSignature, "invalid signature")
			return
		}

		var event webhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid payload")
			return
		}

		if event.Type != "checkout.completed" {
			// Not ours; ack so the processor stops redelivering.
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		if event.Data.OrderID == "" || event.Data.ListingID == "" {
			log.Error("webhook metadata missing order or listing id",
				slog.String("event_id", event.ID))
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "missing order correlation metadata")
			return
		}

		if guard != nil && event.ID != "" {
			first, err := guard.MarkProcessed(r.Context(), event.ID)
			if err != nil {
				log.Warn("event guard unavailable, falling through to store idempotency",
					slog.String("error", err.Error()))
			} else if !first {
				metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
				writeJSON(w, http.StatusOK, map[string]bool{"received": true})
				return
			}
		}

		res, err := svc.ProcessPaymentConfirmed(r.Context(), app.PaymentConfirmedInput{
			EventID:    event.ID,
			OrderID:    event.Data.OrderID,
			ListingID:  event.Data.ListingID,
			PaymentRef: event.Data.PaymentRef,
		})
		if err != nil {
			// Let a redelivery retry from scratch.
			if guard != nil && event.ID != "" {
				if ferr := guard.Forget(r.Context(), event.ID); ferr != nil {
					log.Warn("failed to clear event guard", slog.String("error", ferr.Error()))
				}
			}
			metrics.WebhookEvents.WithLabelValues("failed").Inc()
			switch {
			case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
			case errors.Is(err, domain.ErrListingMismatch):
				writeError(w, http.StatusBadRequest, codeListingMismatch, "listing does not match order")
			default:
				log.Error("webhook processing failed",
					slog.String("order_id", event.Data.OrderID),
					slog.String("error", err.Error()))
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		metrics.WebhookEvents.WithLabelValues("processed").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"received":    true,
			"transferred": res.Transferred,
		})
	}
}
