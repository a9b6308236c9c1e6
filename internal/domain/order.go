package domain

import "time"

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusCompleted      OrderStatus = "completed"
)

// Order represents a purchase of a single listed card. It is created at
// checkout in pending_payment and advanced by the payment webhook and by
// buyer/seller actions; it is never deleted.
type Order struct {
	ID        string
	ListingID string
	BuyerID   string
	// SellerID is recorded at ownership transfer so the pre-transfer owner
	// stays visible after the listing row has moved to the buyer.
	SellerID       string
	TotalAmount    int64
	Status         OrderStatus
	PaymentRef     string
	Carrier        string
	TrackingNumber string
	// MomentSnapshot is captured at checkout and immutable from then on. It
	// is the authoritative provenance source; the live lookup is only a
	// fallback when no snapshot was captured.
	MomentSnapshot []MomentSnapshotEntry
	CreatedAt      time.Time
	ShippedAt      *time.Time
	CompletedAt    *time.Time
}

// MomentSnapshotEntry is one live moment as it looked at checkout, frozen
// onto the order.
type MomentSnapshotEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PlayerName  string    `json:"player_name"`
	Intensity   int       `json:"intensity"`
	Description string    `json:"description"`
	MatchResult string    `json:"match_result"`
	IsFinalized bool      `json:"is_finalized"`
	CreatedAt   time.Time `json:"created_at"`
}
