package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/clock"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
)

func TestFulfillmentService_MarkShipped(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 14, 9, 0, 0, 0, time.UTC)

	t.Run("seller of record ships a paid order", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			SellerID:  "seller-1",
			Status:    domain.OrderStatusPaid,
		}
		notifier := &recordNotifier{}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), notifier)

		order, err := svc.MarkShipped(context.Background(), "order-1", "seller-1", ShipmentInfo{
			Carrier:        "yamato",
			TrackingNumber: "TRK-123",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.Status != domain.OrderStatusShipped {
			t.Fatalf("expected shipped, got %s", order.Status)
		}
		if order.Carrier != "yamato" || order.TrackingNumber != "TRK-123" {
			t.Fatalf("expected tracking recorded, got %s %s", order.Carrier, order.TrackingNumber)
		}
		if order.ShippedAt == nil || !order.ShippedAt.Equal(now) {
			t.Fatalf("expected shipped_at %v, got %v", now, order.ShippedAt)
		}
		if stored := repo.orders["order-1"]; stored.Status != domain.OrderStatusShipped {
			t.Fatalf("expected store updated, got %s", stored.Status)
		}
		if len(notifier.shipped) != 1 || notifier.shipped[0] != "buyer-1" {
			t.Fatalf("expected shipment notice to buyer-1, got %v", notifier.shipped)
		}
	})

	t.Run("listing owner may ship before the transfer recorded a seller", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusPaid,
		}
		repo.items["item-1"] = domain.ListingItem{ID: "item-1", SellerID: "seller-1"}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.MarkShipped(context.Background(), "order-1", "seller-1", ShipmentInfo{}); err != nil {
			t.Fatalf("expected listing owner to ship, got %v", err)
		}
	})

	t.Run("non-seller is rejected", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:       "order-1",
			SellerID: "seller-1",
			Status:   domain.OrderStatusPaid,
		}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.MarkShipped(context.Background(), "order-1", "someone-else", ShipmentInfo{}); !errors.Is(err, domain.ErrNotSeller) {
			t.Fatalf("expected ErrNotSeller, got %v", err)
		}
	})

	t.Run("already shipped order is rejected", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:       "order-1",
			SellerID: "seller-1",
			Status:   domain.OrderStatusShipped,
		}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.MarkShipped(context.Background(), "order-1", "seller-1", ShipmentInfo{}); !errors.Is(err, domain.ErrAlreadyShipped) {
			t.Fatalf("expected ErrAlreadyShipped, got %v", err)
		}
	})

	t.Run("unpaid order is rejected", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:       "order-1",
			SellerID: "seller-1",
			Status:   domain.OrderStatusPendingPayment,
		}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.MarkShipped(context.Background(), "order-1", "seller-1", ShipmentInfo{}); !errors.Is(err, domain.ErrOrderNotPaid) {
			t.Fatalf("expected ErrOrderNotPaid, got %v", err)
		}
	})
}

func TestFulfillmentService_MarkReceived(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 20, 15, 0, 0, 0, time.UTC)

	t.Run("buyer completes a shipped order and funds unlock once", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			SellerID:  "seller-1",
			Status:    domain.OrderStatusShipped,
		}
		rec := &fakeReconciler{result: ReconcileResult{Item: domain.ListingItem{ID: "item-2"}}}
		notifier := &recordNotifier{}
		svc := NewFulfillmentService(repo, rec, clock.NewFixed(now), testLogger(), notifier)

		order, err := svc.MarkReceived(context.Background(), "order-1", "buyer-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.Status != domain.OrderStatusCompleted {
			t.Fatalf("expected completed, got %s", order.Status)
		}
		if order.CompletedAt == nil || !order.CompletedAt.Equal(now) {
			t.Fatalf("expected completed_at %v, got %v", now, order.CompletedAt)
		}
		if repo.unlockCalls != 1 {
			t.Fatalf("expected one fund unlock, got %d", repo.unlockCalls)
		}
		if len(repo.released) != 1 || repo.released[0] != "item-2" {
			t.Fatalf("expected item-2 released, got %v", repo.released)
		}
		if len(notifier.released) != 1 || notifier.released[0] != "seller-1" {
			t.Fatalf("expected fund notice to seller-1, got %v", notifier.released)
		}
	})

	t.Run("completing twice does not unlock funds again", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusCompleted,
		}
		rec := &fakeReconciler{result: ReconcileResult{Item: domain.ListingItem{ID: "item-2"}}}
		svc := NewFulfillmentService(repo, rec, clock.NewFixed(now), testLogger(), nil)

		order, err := svc.MarkReceived(context.Background(), "order-1", "buyer-1")
		if err != nil {
			t.Fatalf("expected no-op success, got %v", err)
		}
		if order.Status != domain.OrderStatusCompleted {
			t.Fatalf("expected completed, got %s", order.Status)
		}
		if repo.unlockCalls != 0 {
			t.Fatalf("expected no fund unlock on repeat, got %d", repo.unlockCalls)
		}
		// The item release is retried so a failed first attempt can catch up.
		if len(repo.released) != 1 {
			t.Fatalf("expected item release retried, got %v", repo.released)
		}
	})

	t.Run("non-buyer is rejected", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:      "order-1",
			BuyerID: "buyer-1",
			Status:  domain.OrderStatusShipped,
		}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.MarkReceived(context.Background(), "order-1", "seller-1"); !errors.Is(err, domain.ErrNotBuyer) {
			t.Fatalf("expected ErrNotBuyer, got %v", err)
		}
	})

	t.Run("unshipped order is rejected", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:      "order-1",
			BuyerID: "buyer-1",
			Status:  domain.OrderStatusPaid,
		}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.MarkReceived(context.Background(), "order-1", "buyer-1"); !errors.Is(err, domain.ErrOrderNotShipped) {
			t.Fatalf("expected ErrOrderNotShipped, got %v", err)
		}
	})

	t.Run("fund unlock failure surfaces for retry", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusShipped,
		}
		repo.unlockErr = errors.New("function missing")
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.MarkReceived(context.Background(), "order-1", "buyer-1"); err == nil {
			t.Fatalf("expected error when fund unlock fails")
		}
		if len(repo.released) != 0 {
			t.Fatalf("expected no item release after failed unlock, got %v", repo.released)
		}
	})

	t.Run("item release failure does not fail the completion", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusShipped,
		}
		repo.releaseErr = errors.New("row gone")
		rec := &fakeReconciler{result: ReconcileResult{Item: domain.ListingItem{ID: "item-2"}}}
		svc := NewFulfillmentService(repo, rec, clock.NewFixed(now), testLogger(), nil)

		order, err := svc.MarkReceived(context.Background(), "order-1", "buyer-1")
		if err != nil {
			t.Fatalf("expected completion to succeed, got %v", err)
		}
		if order.Status != domain.OrderStatusCompleted {
			t.Fatalf("expected completed, got %s", order.Status)
		}
	})
}

func TestFulfillmentService_Views(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 20, 15, 0, 0, 0, time.UTC)

	t.Run("buyer view self-heals a missing item", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusPaid,
		}
		rec := &fakeReconciler{result: ReconcileResult{
			Item:    domain.ListingItem{ID: "item-2", PlayerName: "Ohtani"},
			Created: true,
		}}
		svc := NewFulfillmentService(repo, rec, clock.NewFixed(now), testLogger(), nil)

		detail, err := svc.BuyerOrder(context.Background(), "order-1", "buyer-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if detail.Listing.ID != "item-2" {
			t.Fatalf("expected reconciled item in view, got %s", detail.Listing.ID)
		}
		if detail.Title != "Ohtani" {
			t.Fatalf("expected title from player name, got %q", detail.Title)
		}
	})

	t.Run("buyer view falls back to listing when reconciliation fails", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusPaid,
		}
		repo.items["item-1"] = domain.ListingItem{ID: "item-1", SeriesName: "Topps Chrome"}
		rec := &fakeReconciler{err: errors.New("store down")}
		svc := NewFulfillmentService(repo, rec, clock.NewFixed(now), testLogger(), nil)

		detail, err := svc.BuyerOrder(context.Background(), "order-1", "buyer-1")
		if err != nil {
			t.Fatalf("expected fallback view, got %v", err)
		}
		if detail.Listing.ID != "item-1" {
			t.Fatalf("expected original listing, got %s", detail.Listing.ID)
		}
		if detail.Title != "Topps Chrome" {
			t.Fatalf("expected series fallback title, got %q", detail.Title)
		}
	})

	t.Run("pending order skips reconciliation in buyer view", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			BuyerID:   "buyer-1",
			Status:    domain.OrderStatusPendingPayment,
		}
		repo.items["item-1"] = domain.ListingItem{ID: "item-1"}
		rec := &fakeReconciler{}
		svc := NewFulfillmentService(repo, rec, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.BuyerOrder(context.Background(), "order-1", "buyer-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.calls != 0 {
			t.Fatalf("expected no reconciliation before payment, got %d", rec.calls)
		}
	})

	t.Run("seller view rejects non-seller", func(t *testing.T) {
		repo := newFakeFulfillmentRepo()
		repo.orders["order-1"] = domain.Order{
			ID:        "order-1",
			ListingID: "item-1",
			SellerID:  "seller-1",
			Status:    domain.OrderStatusPaid,
		}
		repo.items["item-1"] = domain.ListingItem{ID: "item-1"}
		svc := NewFulfillmentService(repo, &fakeReconciler{}, clock.NewFixed(now), testLogger(), nil)

		if _, err := svc.SellerOrder(context.Background(), "order-1", "buyer-1"); !errors.Is(err, domain.ErrNotSeller) {
			t.Fatalf("expected ErrNotSeller, got %v", err)
		}
	})
}

type fakeFulfillmentRepo struct {
	orders map[string]domain.Order
	items  map[string]domain.ListingItem

	unlockCalls int
	unlockErr   error
	released    []string
	releaseErr  error
}

func newFakeFulfillmentRepo() *fakeFulfillmentRepo {
	return &fakeFulfillmentRepo{
		orders: make(map[string]domain.Order),
		items:  make(map[string]domain.ListingItem),
	}
}

func (f *fakeFulfillmentRepo) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeFulfillmentRepo) GetItem(_ context.Context, itemID string) (domain.ListingItem, error) {
	item, ok := f.items[itemID]
	if !ok {
		return domain.ListingItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeFulfillmentRepo) MarkOrderShipped(_ context.Context, orderID, carrier, trackingNumber string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPaid {
		return domain.ErrOrderNotPaid
	}
	order.Status = domain.OrderStatusShipped
	order.Carrier = carrier
	order.TrackingNumber = trackingNumber
	f.orders[orderID] = order
	return nil
}

func (f *fakeFulfillmentRepo) UnlockFunds(_ context.Context, listingID string) error {
	f.unlockCalls++
	if f.unlockErr != nil {
		return f.unlockErr
	}
	for id, order := range f.orders {
		if order.ListingID == listingID && order.Status == domain.OrderStatusShipped {
			order.Status = domain.OrderStatusCompleted
			f.orders[id] = order
		}
	}
	return nil
}

func (f *fakeFulfillmentRepo) StampOrderCompleted(_ context.Context, orderID string) error {
	return nil
}

func (f *fakeFulfillmentRepo) ReleaseItemToBuyer(_ context.Context, itemID, orderID string) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.released = append(f.released, itemID)
	return nil
}

type fakeReconciler struct {
	result ReconcileResult
	err    error
	calls  int
}

func (f *fakeReconciler) EnsureBuyerItem(_ context.Context, _ string) (ReconcileResult, error) {
	f.calls++
	if f.err != nil {
		return ReconcileResult{}, f.err
	}
	return f.result, nil
}
