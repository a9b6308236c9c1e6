package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/clock"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/metrics"
)

// TransferRepository is the ledger-store surface the transfer workflow needs.
// The store offers no multi-statement transactions to this service; every
// mutation is a single guarded statement and the workflow is written
// check-then-act around that.
type TransferRepository interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetItem(ctx context.Context, itemID string) (domain.ListingItem, error)
	FindItemByOriginOrder(ctx context.Context, orderID string) (*domain.ListingItem, error)
	MarkOrderPaid(ctx context.Context, orderID, paymentRef string) error
	RecordOrderSeller(ctx context.Context, orderID, sellerID string) error
	TransferItem(ctx context.Context, itemID, buyerID, orderID string) error
	UpdateItemHistory(ctx context.Context, itemID string, history []domain.ProvenanceEntry) error
	ListRecentMoments(ctx context.Context, since time.Time) ([]domain.LiveMoment, error)
}

// Notifier delivers user-facing notifications for workflow events. Delivery
// is fire-and-forget: implementations log failures and never surface them,
// so a dead mail provider cannot fail a paid transaction.
type Notifier interface {
	ShipRequest(ctx context.Context, sellerID, product, orderID string)
	OrderConfirmed(ctx context.Context, buyerID, product string, amount int64, orderID string)
	OrderShipped(ctx context.Context, buyerID, product, carrier, tracking, orderID string)
	FundsReleased(ctx context.Context, sellerID, product, orderID string)
}

const defaultMomentWindow = time.Hour

// TransferService executes the seller-to-buyer ownership change for a paid
// order and attaches the matching provenance entries to the moved item.
type TransferService struct {
	repo         TransferRepository
	clock        clock.Clock
	logger       *slog.Logger
	notifier     Notifier
	momentWindow time.Duration
}

func NewTransferService(repo TransferRepository, clk clock.Clock, logger *slog.Logger, notifier Notifier, opts ...TransferServiceOption) *TransferService {
	svc := &TransferService{
		repo:         repo,
		clock:        clk,
		logger:       logger.With(slog.String("component", "transfer")),
		notifier:     notifier,
		momentWindow: defaultMomentWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type TransferServiceOption func(*TransferService)

// WithMomentWindow overrides the trailing window for the live-moment
// fallback lookup.
func WithMomentWindow(d time.Duration) TransferServiceOption {
	return func(s *TransferService) {
		if d > 0 {
			s.momentWindow = d
		}
	}
}

type PaymentConfirmedInput struct {
	EventID    string
	OrderID    string
	ListingID  string
	PaymentRef string
}

type TransferResult struct {
	Order domain.Order
	Item  domain.ListingItem
	// Transferred is false when the item already carried this origin order,
	// i.e. a redelivered event hit an already-processed transfer.
	Transferred bool
}

// ProcessPaymentConfirmed handles one verified payment-confirmation event.
//
// Only the order lookup, the listing correlation check, and the paid-status
// write can fail the call; the processor retries those. Everything after the
// payment is recorded is at-least-eventually-consistent: a failed ownership
// transfer or history write is logged with its correlation ids and left to
// the reconciliation procedure, never rolled back, because the payment has
// already cleared.
func (s *TransferService) ProcessPaymentConfirmed(ctx context.Context, in PaymentConfirmedInput) (TransferResult, error) {
	log := s.logger.With(slog.String("order_id", in.OrderID), slog.String("event_id", in.EventID))

	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return TransferResult{}, err
	}
	if in.ListingID != "" && order.ListingID != in.ListingID {
		return TransferResult{}, domain.ErrListingMismatch
	}

	if err := s.repo.MarkOrderPaid(ctx, order.ID, in.PaymentRef); err != nil {
		return TransferResult{}, fmt.Errorf("mark order paid: %w", err)
	}
	if order.Status == domain.OrderStatusPendingPayment {
		order.Status = domain.OrderStatusPaid
		order.PaymentRef = in.PaymentRef
	}

	// Redelivery check: an item already linked to this order means the
	// transfer ran before. Re-sync provenance (idempotent by moment_id) and
	// report the duplicate instead of moving ownership twice.
	if existing, err := s.repo.FindItemByOriginOrder(ctx, order.ID); err != nil {
		return TransferResult{}, fmt.Errorf("check existing transfer: %w", err)
	} else if existing != nil {
		log.Info("ownership already transferred, skipping",
			slog.String("item_id", existing.ID))
		metrics.OwnershipTransfers.WithLabelValues("duplicate").Inc()

		s.syncProvenance(ctx, order, existing)
		return TransferResult{Order: order, Item: *existing, Transferred: false}, nil
	}

	listing, recent, err := s.fetchListingAndMoments(ctx, order)
	if err != nil {
		// The payment is recorded; a missing listing row is consistency
		// drift for reconciliation, not a webhook failure.
		log.Error("cannot load listing for transfer, leaving to reconciliation",
			slog.String("listing_id", order.ListingID),
			slog.String("error", err.Error()))
		metrics.OwnershipTransfers.WithLabelValues("failed").Inc()
		return TransferResult{Order: order}, nil
	}

	preSeller := listing.SellerID
	if err := s.repo.TransferItem(ctx, listing.ID, order.BuyerID, order.ID); err != nil {
		log.Error("CRITICAL: ownership transfer failed, leaving to reconciliation",
			slog.String("item_id", listing.ID),
			slog.String("buyer_id", order.BuyerID),
			slog.String("error", err.Error()))
		metrics.OwnershipTransfers.WithLabelValues("failed").Inc()
		return TransferResult{Order: order, Item: listing}, nil
	}
	listing.SellerID = order.BuyerID
	listing.Status = domain.ItemStatusAwaitingShipment
	listing.OriginOrderID = order.ID
	metrics.OwnershipTransfers.WithLabelValues("ok").Inc()
	log.Info("ownership transferred",
		slog.String("item_id", listing.ID),
		slog.String("buyer_id", order.BuyerID))

	if err := s.repo.RecordOrderSeller(ctx, order.ID, preSeller); err != nil {
		log.Error("failed to record pre-transfer seller on order",
			slog.String("seller_id", preSeller),
			slog.String("error", err.Error()))
	} else {
		order.SellerID = preSeller
	}

	s.syncProvenanceWith(ctx, order, &listing, recent)

	if s.notifier != nil {
		product := listingProduct(listing)
		s.notifier.ShipRequest(ctx, preSeller, product, order.ID)
		s.notifier.OrderConfirmed(ctx, order.BuyerID, product, order.TotalAmount, order.ID)
	}

	return TransferResult{Order: order, Item: listing, Transferred: true}, nil
}

// fetchListingAndMoments loads the listed item and, only when the order has
// no snapshot, the live moments inside the trailing window. The two reads
// are independent and run concurrently.
func (s *TransferService) fetchListingAndMoments(ctx context.Context, order domain.Order) (domain.ListingItem, []domain.LiveMoment, error) {
	var (
		listing domain.ListingItem
		recent  []domain.LiveMoment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listing, err = s.repo.GetItem(gctx, order.ListingID)
		return err
	})
	if len(order.MomentSnapshot) == 0 {
		since := s.clock.Now().Add(-s.momentWindow)
		g.Go(func() error {
			moments, err := s.repo.ListRecentMoments(gctx, since)
			if err != nil {
				// Best-effort fallback source; a failed lookup degrades to
				// an empty candidate set rather than failing the transfer.
				s.logger.Warn("live moment lookup failed",
					slog.String("order_id", order.ID),
					slog.String("error", err.Error()))
				return nil
			}
			recent = moments
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ListingItem{}, nil, err
	}
	return listing, recent, nil
}

// syncProvenance re-fetches the live-moment window when needed and merges
// provenance onto the item. Used on the redelivery path where the moments
// were not prefetched.
func (s *TransferService) syncProvenance(ctx context.Context, order domain.Order, item *domain.ListingItem) {
	var recent []domain.LiveMoment
	if len(order.MomentSnapshot) == 0 {
		moments, err := s.repo.ListRecentMoments(ctx, s.clock.Now().Add(-s.momentWindow))
		if err != nil {
			s.logger.Warn("live moment lookup failed",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()))
		} else {
			recent = moments
		}
	}
	s.syncProvenanceWith(ctx, order, item, recent)
}

// syncProvenanceWith appends the provenance entries for this purchase to the
// item's history. The order's snapshot is authoritative when present; the
// live candidates are only consulted without one. Entries already present by
// moment_id are skipped, so repeated calls append nothing new.
func (s *TransferService) syncProvenanceWith(ctx context.Context, order domain.Order, item *domain.ListingItem, recent []domain.LiveMoment) {
	candidates := s.candidateEntries(order, *item)
	if len(candidates) == 0 && len(order.MomentSnapshot) == 0 {
		candidates = s.matchLiveMoments(order, *item, recent)
	}
	if len(candidates) == 0 {
		return
	}

	merged := append(append([]domain.ProvenanceEntry{}, item.MomentHistory...), candidates...)
	if err := s.repo.UpdateItemHistory(ctx, item.ID, merged); err != nil {
		s.logger.Error("failed to append moment history",
			slog.String("order_id", order.ID),
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()))
		return
	}
	item.MomentHistory = merged
	metrics.ProvenanceEntriesAppended.Add(float64(len(candidates)))
	s.logger.Info("moment history appended",
		slog.String("item_id", item.ID),
		slog.Int("entries", len(candidates)))
}

// candidateEntries builds entries from the order's snapshot, dropping any
// moment the item already carries.
func (s *TransferService) candidateEntries(order domain.Order, item domain.ListingItem) []domain.ProvenanceEntry {
	now := s.clock.Now()
	var out []domain.ProvenanceEntry
	for _, snap := range order.MomentSnapshot {
		if item.HasMoment(snap.ID) {
			continue
		}
		out = append(out, domain.ProvenanceEntry{
			MomentID:    snap.ID,
			Title:       snap.Title,
			PlayerName:  snap.PlayerName,
			Intensity:   snap.Intensity,
			Description: snap.Description,
			MatchResult: snap.MatchResult,
			OwnerAtTime: order.ID,
			Status:      provenanceStatus(snap.IsFinalized),
			Timestamp:   now,
		})
	}
	return out
}

// matchLiveMoments is the best-effort fallback when no snapshot was captured
// at checkout: every in-window moment whose player name substring-matches the
// item's player is attached.
func (s *TransferService) matchLiveMoments(order domain.Order, item domain.ListingItem, recent []domain.LiveMoment) []domain.ProvenanceEntry {
	now := s.clock.Now()
	var out []domain.ProvenanceEntry
	for _, m := range recent {
		if !m.MatchesPlayer(item.PlayerName) {
			continue
		}
		if item.HasMoment(m.ID) {
			continue
		}
		out = append(out, domain.ProvenanceEntry{
			MomentID:    m.ID,
			Title:       m.Title,
			PlayerName:  m.PlayerName,
			Intensity:   m.Intensity,
			Description: m.Description,
			MatchResult: m.MatchResult,
			OwnerAtTime: order.ID,
			Status:      provenanceStatus(m.IsFinalized),
			Timestamp:   now,
		})
	}
	return out
}

func provenanceStatus(finalized bool) domain.ProvenanceStatus {
	if finalized {
		return domain.ProvenanceStatusFinalized
	}
	return domain.ProvenanceStatusPending
}

// listingProduct picks the display name used in notifications.
func listingProduct(item domain.ListingItem) string {
	if item.PlayerName != "" {
		return item.PlayerName
	}
	return item.SeriesName
}
