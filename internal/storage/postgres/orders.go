package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
)

const orderColumns = `
id, listing_id, buyer_id, COALESCE(seller_id::text, ''), total_amount, status,
COALESCE(payment_ref, ''), COALESCE(carrier, ''), COALESCE(tracking_number, ''),
moment_snapshot, created_at, shipped_at, completed_at`

func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var (
		o        domain.Order
		status   string
		snapshot []byte
	)
	err := s.pool.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.TotalAmount, &status,
		&o.PaymentRef, &o.Carrier, &o.TrackingNumber,
		&snapshot, &o.CreatedAt, &o.ShippedAt, &o.CompletedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &o.MomentSnapshot); err != nil {
			return domain.Order{}, fmt.Errorf("decode moment snapshot: %w", err)
		}
	}
	return o, nil
}

// MarkOrderPaid advances pending_payment to paid. Orders already past
// pending are left untouched so a redelivered event cannot regress state.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID, paymentRef string) error {
	const stmt = `
UPDATE orders
SET status = $2, payment_ref = $3
WHERE id = $1 AND status = $4`

	_, err := s.pool.Exec(ctx, stmt, orderID,
		string(domain.OrderStatusPaid), paymentRef, string(domain.OrderStatusPendingPayment))
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return nil
}

func (s *Store) RecordOrderSeller(ctx context.Context, orderID, sellerID string) error {
	const stmt = `UPDATE orders SET seller_id = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, stmt, orderID, sellerID)
	if err != nil {
		return fmt.Errorf("record order seller: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// MarkOrderShipped moves a paid order to shipped with its tracking metadata.
func (s *Store) MarkOrderShipped(ctx context.Context, orderID, carrier, trackingNumber string) error {
	const stmt = `
UPDATE orders
SET status = $2, carrier = NULLIF($3, ''), tracking_number = NULLIF($4, ''), shipped_at = NOW()
WHERE id = $1 AND status = $5`

	tag, err := s.pool.Exec(ctx, stmt, orderID,
		string(domain.OrderStatusShipped), carrier, trackingNumber, string(domain.OrderStatusPaid))
	if err != nil {
		return fmt.Errorf("mark order shipped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotPaid
	}
	return nil
}

// UnlockFunds invokes the store-side complete_order routine. The routine is
// the atomicity boundary for fund release: it completes the shipped order
// for the listing and credits the seller ledger at most once.
func (s *Store) UnlockFunds(ctx context.Context, listingID string) error {
	if _, err := s.pool.Exec(ctx, `SELECT complete_order($1)`, listingID); err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	return nil
}

func (s *Store) StampOrderCompleted(ctx context.Context, orderID string) error {
	const stmt = `
UPDATE orders
SET completed_at = NOW()
WHERE id = $1 AND completed_at IS NULL`

	if _, err := s.pool.Exec(ctx, stmt, orderID); err != nil {
		return fmt.Errorf("stamp order completed: %w", err)
	}
	return nil
}
