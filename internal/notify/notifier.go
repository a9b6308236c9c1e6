// Package notify delivers transactional email to buyers and sellers.
// Dispatch is fire-and-forget: the fulfillment workflow must never fail or
// roll back because a mail provider is down, so every failure here is logged
// and swallowed.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Mailer is the interface a mail provider must implement.
type Mailer interface {
	// Send delivers one email.
	Send(ctx context.Context, to, subject, html string) error
	// Name returns a human-readable identifier for the provider.
	Name() string
}

// Directory resolves a user id to an email address and display name. The
// upstream app owns user accounts; this service only reads the profile rows.
type Directory interface {
	LookupUserEmail(ctx context.Context, userID string) (email, name string, err error)
}

const sendTimeout = 10 * time.Second

// EmailNotifier implements the workflow notification hooks on top of a
// Mailer and a user Directory.
type EmailNotifier struct {
	mailer  Mailer
	dir     Directory
	baseURL string
	logger  *slog.Logger
}

func NewEmailNotifier(mailer Mailer, dir Directory, baseURL string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		mailer:  mailer,
		dir:     dir,
		baseURL: baseURL,
		logger:  logger.With(slog.String("component", "notify")),
	}
}

// ShipRequest tells the seller their item sold and needs to ship.
func (n *EmailNotifier) ShipRequest(ctx context.Context, sellerID, product, orderID string) {
	n.send(ctx, sellerID, "Item Sold - Shipping Required", func(name string) string {
		return fmt.Sprintf(
			"<p>Hi %s,</p><p>Your card <strong>%s</strong> has been sold. Please ship it to the buyer.</p><p><a href=%q>View order</a></p>",
			name, product, n.baseURL+"/orders/sell/"+orderID)
	})
}

// OrderConfirmed tells the buyer their payment went through.
func (n *EmailNotifier) OrderConfirmed(ctx context.Context, buyerID, product string, amount int64, orderID string) {
	n.send(ctx, buyerID, "Order Confirmed", func(name string) string {
		return fmt.Sprintf(
			"<p>Hi %s,</p><p>Your order for <strong>%s</strong> (¥%d) is confirmed. We'll let you know when it ships.</p><p><a href=%q>View order</a></p>",
			name, product, amount, n.baseURL+"/orders/buy/"+orderID)
	})
}

// OrderShipped tells the buyer the card is on its way.
func (n *EmailNotifier) OrderShipped(ctx context.Context, buyerID, product, carrier, tracking, orderID string) {
	n.send(ctx, buyerID, "Your Item Has Been Shipped", func(name string) string {
		body := fmt.Sprintf("<p>Hi %s,</p><p><strong>%s</strong> has shipped.</p>", name, product)
		if tracking != "" {
			body += fmt.Sprintf("<p>Tracking: %s %s</p>", carrier, tracking)
		}
		return body + fmt.Sprintf("<p><a href=%q>View order</a></p>", n.baseURL+"/orders/buy/"+orderID)
	})
}

// FundsReleased tells the seller the buyer confirmed receipt and funds are
// available.
func (n *EmailNotifier) FundsReleased(ctx context.Context, sellerID, product, orderID string) {
	n.send(ctx, sellerID, "Transaction Completed: Funds Added", func(name string) string {
		return fmt.Sprintf(
			"<p>Hi %s,</p><p>The buyer confirmed receipt of <strong>%s</strong>. The sale amount has been added to your balance.</p><p><a href=%q>View payouts</a></p>",
			name, product, n.baseURL+"/payouts")
	})
}

// send resolves the recipient and dispatches with its own timeout, detached
// from the caller's deadline so a slow provider cannot hold a webhook open.
func (n *EmailNotifier) send(ctx context.Context, userID, subject string, body func(name string) string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	email, name, err := n.dir.LookupUserEmail(sendCtx, userID)
	if err != nil {
		n.logger.Warn("recipient lookup failed",
			slog.String("user_id", userID),
			slog.String("subject", subject),
			slog.String("error", err.Error()))
		return
	}
	if name == "" {
		name = "Collector"
	}

	if err := n.mailer.Send(sendCtx, email, subject, body(name)); err != nil {
		n.logger.Warn("email send failed",
			slog.String("provider", n.mailer.Name()),
			slog.String("user_id", userID),
			slog.String("subject", subject),
			slog.String("error", err.Error()))
		return
	}
	n.logger.Debug("email sent",
		slog.String("user_id", userID),
		slog.String("subject", subject))
}
