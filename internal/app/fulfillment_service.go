package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/clock"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
)

// FulfillmentRepository is the store surface for the post-payment order
// lifecycle.
type FulfillmentRepository interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetItem(ctx context.Context, itemID string) (domain.ListingItem, error)
	MarkOrderShipped(ctx context.Context, orderID string, carrier, trackingNumber string) error
	// UnlockFunds runs the store-side complete_order operation keyed by the
	// listing. It is atomic and idempotent at the store: only a shipped
	// order completes, and the seller credit is written at most once.
	UnlockFunds(ctx context.Context, listingID string) error
	StampOrderCompleted(ctx context.Context, orderID string) error
	// ReleaseItemToBuyer flips the item to Draft and pins origin_order_id,
	// guarded so it only fires while the item is in a pre-release state.
	ReleaseItemToBuyer(ctx context.Context, itemID, orderID string) error
}

// Reconciler locates (or rebuilds) the buyer's item for an order.
type Reconciler interface {
	EnsureBuyerItem(ctx context.Context, orderID string) (ReconcileResult, error)
}

// FulfillmentService drives the order lifecycle between payment and buyer
// receipt confirmation.
type FulfillmentService struct {
	repo       FulfillmentRepository
	reconciler Reconciler
	clock      clock.Clock
	logger     *slog.Logger
	notifier   Notifier
}

func NewFulfillmentService(repo FulfillmentRepository, reconciler Reconciler, clk clock.Clock, logger *slog.Logger, notifier Notifier) *FulfillmentService {
	return &FulfillmentService{
		repo:       repo,
		reconciler: reconciler,
		clock:      clk,
		logger:     logger.With(slog.String("component", "fulfillment")),
		notifier:   notifier,
	}
}

type ShipmentInfo struct {
	Carrier        string
	TrackingNumber string
}

// MarkShipped records that the seller handed the card to the carrier.
// Only the seller of record may call it, and only on a paid order. Store
// failures surface to the caller; the user can retry.
func (s *FulfillmentService) MarkShipped(ctx context.Context, orderID, actorID string, info ShipmentInfo) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	seller, err := s.sellerOfRecord(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	if actorID != seller {
		return domain.Order{}, domain.ErrNotSeller
	}

	switch order.Status {
	case domain.OrderStatusPaid:
	case domain.OrderStatusShipped, domain.OrderStatusCompleted:
		return domain.Order{}, domain.ErrAlreadyShipped
	default:
		return domain.Order{}, domain.ErrOrderNotPaid
	}

	if err := s.repo.MarkOrderShipped(ctx, orderID, info.Carrier, info.TrackingNumber); err != nil {
		return domain.Order{}, fmt.Errorf("mark order shipped: %w", err)
	}
	now := s.clock.Now()
	order.Status = domain.OrderStatusShipped
	order.Carrier = info.Carrier
	order.TrackingNumber = info.TrackingNumber
	order.ShippedAt = &now

	if s.notifier != nil {
		product := s.orderProduct(ctx, order)
		s.notifier.OrderShipped(ctx, order.BuyerID, product, info.Carrier, info.TrackingNumber, order.ID)
	}

	return order, nil
}

// MarkReceived is the buyer's receipt confirmation and the fund-release
// point. Completing an already-completed order is a no-op success and does
// not touch the ledger again. The item release after the unlock is
// best-effort: its failure is logged for reconciliation, not surfaced, since
// the financially important step already succeeded.
func (s *FulfillmentService) MarkReceived(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.BuyerID != actorID {
		return domain.Order{}, domain.ErrNotBuyer
	}

	if order.Status == domain.OrderStatusCompleted {
		// Terminal state is not re-enterable; the item guard below is still
		// harmless but the ledger must not unlock twice.
		s.releaseItem(ctx, order)
		return order, nil
	}
	if order.Status != domain.OrderStatusShipped {
		return domain.Order{}, domain.ErrOrderNotShipped
	}

	if err := s.repo.UnlockFunds(ctx, order.ListingID); err != nil {
		return domain.Order{}, fmt.Errorf("unlock funds: %w", err)
	}
	if err := s.repo.StampOrderCompleted(ctx, orderID); err != nil {
		s.logger.Error("failed to stamp completed_at",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()))
	}
	now := s.clock.Now()
	order.Status = domain.OrderStatusCompleted
	order.CompletedAt = &now

	s.releaseItem(ctx, order)

	if s.notifier != nil && order.SellerID != "" {
		product := s.orderProduct(ctx, order)
		s.notifier.FundsReleased(ctx, order.SellerID, product, order.ID)
	}

	return order, nil
}

// releaseItem hands the transferred card to the buyer's workspace. The
// lookup self-heals through the reconciler, and the status flip is guarded
// to pre-release states so an already-repurposed item is left alone.
func (s *FulfillmentService) releaseItem(ctx context.Context, order domain.Order) {
	res, err := s.reconciler.EnsureBuyerItem(ctx, order.ID)
	if err != nil {
		s.logger.Error("failed to locate buyer item for release",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()))
		return
	}
	if err := s.repo.ReleaseItemToBuyer(ctx, res.Item.ID, order.ID); err != nil {
		s.logger.Error("failed to release item to buyer",
			slog.String("order_id", order.ID),
			slog.String("item_id", res.Item.ID),
			slog.String("error", err.Error()))
	}
}

// OrderDetail is the seller/buyer view of an order joined with its listing.
type OrderDetail struct {
	Order   domain.Order
	Listing domain.ListingItem
	// Title is the display name for the listing.
	Title string
}

// SellerOrder returns the seller's view of an order.
func (s *FulfillmentService) SellerOrder(ctx context.Context, orderID, actorID string) (OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	listing, err := s.repo.GetItem(ctx, order.ListingID)
	if err != nil {
		return OrderDetail{}, err
	}

	seller, err := s.sellerOfRecord(ctx, order)
	if err != nil {
		return OrderDetail{}, err
	}
	if actorID != seller {
		return OrderDetail{}, domain.ErrNotSeller
	}

	return OrderDetail{Order: order, Listing: listing, Title: listingProduct(listing)}, nil
}

// BuyerOrder returns the buyer's view of an order. When the transferred item
// is missing it is rebuilt inline, so the read self-heals instead of
// surfacing drift to the user.
func (s *FulfillmentService) BuyerOrder(ctx context.Context, orderID, actorID string) (OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	if order.BuyerID != actorID {
		return OrderDetail{}, domain.ErrNotBuyer
	}

	if order.Status == domain.OrderStatusPaid ||
		order.Status == domain.OrderStatusShipped ||
		order.Status == domain.OrderStatusCompleted {
		res, err := s.reconciler.EnsureBuyerItem(ctx, order.ID)
		if err == nil {
			return OrderDetail{Order: order, Listing: res.Item, Title: listingProduct(res.Item)}, nil
		}
		s.logger.Error("buyer item reconciliation failed on read",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()))
	}

	listing, err := s.repo.GetItem(ctx, order.ListingID)
	if err != nil {
		return OrderDetail{}, err
	}
	return OrderDetail{Order: order, Listing: listing, Title: listingProduct(listing)}, nil
}

// sellerOfRecord resolves who may act as the order's seller. The seller
// recorded at transfer time wins; before the transfer has recorded one, the
// live listing owner still is the seller.
func (s *FulfillmentService) sellerOfRecord(ctx context.Context, order domain.Order) (string, error) {
	if order.SellerID != "" {
		return order.SellerID, nil
	}
	listing, err := s.repo.GetItem(ctx, order.ListingID)
	if err != nil {
		return "", err
	}
	return listing.SellerID, nil
}

func (s *FulfillmentService) orderProduct(ctx context.Context, order domain.Order) string {
	listing, err := s.repo.GetItem(ctx, order.ListingID)
	if err != nil {
		return ""
	}
	return listingProduct(listing)
}
