package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/app"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
)

// FulfillmentHandler is the order-lifecycle surface the HTTP layer calls.
type FulfillmentHandler interface {
	MarkShipped(ctx context.Context, orderID, actorID string, info app.ShipmentInfo) (domain.Order, error)
	MarkReceived(ctx context.Context, orderID, actorID string) (domain.Order, error)
	SellerOrder(ctx context.Context, orderID, actorID string) (app.OrderDetail, error)
	BuyerOrder(ctx context.Context, orderID, actorID string) (app.OrderDetail, error)
}

// OrderReconciler exposes the recovery procedure for explicit invocation.
type OrderReconciler interface {
	EnsureBuyerItem(ctx context.Context, orderID string) (app.ReconcileResult, error)
}

type shipRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

// HandleMarkShipped returns the handler for POST /orders/{id}/ship.
func HandleMarkShipped(svc FulfillmentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorID(r)
		if actor == "" {
			writeError(w, http.StatusUnauthorized, codeMissingUser, "missing user")
			return
		}

		var req shipRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
		}

		order, err := svc.MarkShipped(r.Context(), r.PathValue("id"), actor, app.ShipmentInfo{
			Carrier:        req.Carrier,
			TrackingNumber: req.TrackingNumber,
		})
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderResponseFrom(order))
	}
}

// HandleMarkReceived returns the handler for POST /orders/{id}/receive.
func HandleMarkReceived(svc FulfillmentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorID(r)
		if actor == "" {
			writeError(w, http.StatusUnauthorized, codeMissingUser, "missing user")
			return
		}

		order, err := svc.MarkReceived(r.Context(), r.PathValue("id"), actor)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderResponseFrom(order))
	}
}

// HandleGetOrder returns the handler for GET /orders/{id}. The view query
// parameter selects the seller or buyer perspective; each carries its own
// ownership check.
func HandleGetOrder(svc FulfillmentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorID(r)
		if actor == "" {
			writeError(w, http.StatusUnauthorized, codeMissingUser, "missing user")
			return
		}

		var (
			detail app.OrderDetail
			err    error
		)
		switch r.URL.Query().Get("view") {
		case "seller":
			detail, err = svc.SellerOrder(r.Context(), r.PathValue("id"), actor)
		default:
			detail, err = svc.BuyerOrder(r.Context(), r.PathValue("id"), actor)
		}
		if err != nil {
			writeOrderError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, orderDetailResponse{
			orderResponse: orderResponseFrom(detail.Order),
			Listing: listingResponse{
				ID:            detail.Listing.ID,
				Title:         detail.Title,
				PlayerName:    detail.Listing.PlayerName,
				SeriesName:    detail.Listing.SeriesName,
				Status:        string(detail.Listing.Status),
				Images:        detail.Listing.Images,
				Price:         detail.Listing.Price,
				MomentHistory: detail.Listing.MomentHistory,
			},
		})
	}
}

// HandleReconcileOrder returns the handler for POST /orders/{id}/reconcile,
// the operator entry point to the recovery procedure.
func HandleReconcileOrder(svc OrderReconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.EnsureBuyerItem(r.Context(), r.PathValue("id"))
		if err != nil {
			writeOrderError(w, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{
			"item_id": res.Item.ID,
			"status":  string(res.Item.Status),
			"created": res.Created,
		})
	}
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, codeItemNotFound, "item not found")
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, "invalid id")
	case errors.Is(err, domain.ErrNotSeller):
		writeError(w, http.StatusForbidden, codeNotSeller, "you are not the seller")
	case errors.Is(err, domain.ErrNotBuyer):
		writeError(w, http.StatusForbidden, codeNotBuyer, "you are not the buyer")
	case errors.Is(err, domain.ErrOrderNotPaid):
		writeError(w, http.StatusConflict, codeOrderNotPaid, "order is not paid")
	case errors.Is(err, domain.ErrOrderNotShipped):
		writeError(w, http.StatusConflict, codeOrderNotShipped, "order has not shipped")
	case errors.Is(err, domain.ErrAlreadyShipped):
		writeError(w, http.StatusConflict, codeAlreadyShipped, "order already shipped")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type orderResponse struct {
	ID             string     `json:"id"`
	ListingID      string     `json:"listing_id"`
	BuyerID        string     `json:"buyer_id"`
	SellerID       string     `json:"seller_id,omitempty"`
	TotalAmount    int64      `json:"total_amount"`
	Status         string     `json:"status"`
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func orderResponseFrom(o domain.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		ListingID:      o.ListingID,
		BuyerID:        o.BuyerID,
		SellerID:       o.SellerID,
		TotalAmount:    o.TotalAmount,
		Status:         string(o.Status),
		Carrier:        o.Carrier,
		TrackingNumber: o.TrackingNumber,
		CreatedAt:      o.CreatedAt,
		ShippedAt:      o.ShippedAt,
		CompletedAt:    o.CompletedAt,
	}
}

type listingResponse struct {
	ID            string                   `json:"id"`
	Title         string                   `json:"title"`
	PlayerName    string                   `json:"player_name,omitempty"`
	SeriesName    string                   `json:"series_name,omitempty"`
	Status        string                   `json:"status"`
	Images        []string                 `json:"images"`
	Price         int64                    `json:"price"`
	MomentHistory []domain.ProvenanceEntry `json:"moment_history"`
}

type orderDetailResponse struct {
	orderResponse
	Listing listingResponse `json:"listing"`
}
