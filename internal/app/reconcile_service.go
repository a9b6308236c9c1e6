package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/clock"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/metrics"
)

// ReconcileRepository is the store surface the recovery procedure needs.
type ReconcileRepository interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetItem(ctx context.Context, itemID string) (domain.ListingItem, error)
	FindItemByOriginOrder(ctx context.Context, orderID string) (*domain.ListingItem, error)
	CreateItem(ctx context.Context, item domain.ListingItem) error
}

// ReconcileService repairs orders whose post-transfer item is missing. It
// replaces the one-off recovery scripts that used to be run by hand: the same
// procedure now runs programmatically on buyer read-miss and on demand.
type ReconcileService struct {
	repo   ReconcileRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewReconcileService(repo ReconcileRepository, clk clock.Clock, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		repo:   repo,
		clock:  clk,
		logger: logger.With(slog.String("component", "reconcile")),
	}
}

type ReconcileResult struct {
	Item domain.ListingItem
	// Created is true when the item had to be synthesized.
	Created bool
}

// EnsureBuyerItem returns the item the buyer should own for the given order,
// synthesizing a replacement from the original listing when the transfer
// never landed. Safe to run repeatedly and concurrently with the transfer
// path: the origin-order existence check plus the store's uniqueness guard on
// origin_order_id keep it single-shot, with a conflict re-read covering the
// narrow race between check and insert.
func (s *ReconcileService) EnsureBuyerItem(ctx context.Context, orderID string) (ReconcileResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return ReconcileResult{}, err
	}

	existing, err := s.repo.FindItemByOriginOrder(ctx, orderID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("find item by origin order: %w", err)
	}
	if existing != nil && existing.SellerID == order.BuyerID {
		metrics.Reconciliations.WithLabelValues("noop").Inc()
		return ReconcileResult{Item: *existing}, nil
	}

	listing, err := s.repo.GetItem(ctx, order.ListingID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load original listing: %w", err)
	}

	item := synthesizeItem(order, listing, s.clock)
	item.ID = newID()

	if err := s.repo.CreateItem(ctx, item); err != nil {
		// A concurrent transfer or reconciliation won the race; take its row.
		if errors.Is(err, domain.ErrDuplicateOrigin) {
			won, ferr := s.repo.FindItemByOriginOrder(ctx, orderID)
			if ferr != nil {
				return ReconcileResult{}, ferr
			}
			if won != nil {
				metrics.Reconciliations.WithLabelValues("noop").Inc()
				return ReconcileResult{Item: *won}, nil
			}
		}
		metrics.Reconciliations.WithLabelValues("failed").Inc()
		return ReconcileResult{}, fmt.Errorf("insert recovered item: %w", err)
	}

	metrics.Reconciliations.WithLabelValues("recovered").Inc()
	s.logger.Warn("synthesized missing buyer item",
		slog.String("order_id", orderID),
		slog.String("item_id", item.ID),
		slog.String("buyer_id", order.BuyerID))

	return ReconcileResult{Item: item, Created: true}, nil
}

// synthesizeItem builds the replacement row: the original listing's
// descriptive fields and history, owned by the buyer, linked to the order.
// A completed order lands the card directly in the buyer's workspace;
// anything earlier is still awaiting shipment.
func synthesizeItem(order domain.Order, listing domain.ListingItem, clk clock.Clock) domain.ListingItem {
	status := domain.ItemStatusAwaitingShipment
	if order.Status == domain.OrderStatusCompleted {
		status = domain.ItemStatusDraft
	}

	now := clk.Now()
	history := append([]domain.ProvenanceEntry{}, listing.MomentHistory...)

	return domain.ListingItem{
		SellerID:        order.BuyerID,
		Status:          status,
		PlayerName:      listing.PlayerName,
		Team:            listing.Team,
		Year:            listing.Year,
		Manufacturer:    listing.Manufacturer,
		SeriesName:      listing.SeriesName,
		CardNumber:      listing.CardNumber,
		Variation:       listing.Variation,
		SerialNumber:    listing.SerialNumber,
		IsRookie:        listing.IsRookie,
		IsAutograph:     listing.IsAutograph,
		Description:     listing.Description,
		ConditionRating: listing.ConditionRating,
		Images:          append([]string{}, listing.Images...),
		Price:           0,
		OriginOrderID:   order.ID,
		MomentHistory:   history,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
