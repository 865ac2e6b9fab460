package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
)

type orderItemResponse struct {
	ID            string          `json:"id"`
	SellerID      string          `json:"seller_id"`
	ProductID     string          `json:"product_id"`
	VariantID     string          `json:"variant_id"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	BuyerID     string              `json:"buyer_id"`
	Status      order.Status        `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Shipping    map[string]string   `json:"shipping,omitempty"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"created_at"`
}

func newOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:            it.ID,
			SellerID:      it.SellerID,
			ProductID:     it.ProductID,
			VariantID:     it.VariantID,
			Quantity:      it.Quantity,
			PriceSnapshot: it.PriceSnapshot,
		})
	}
	return orderResponse{
		ID:          o.ID,
		BuyerID:     o.BuyerID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Shipping:    o.Shipping,
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}

type checkoutRequest struct {
	Shipping map[string]string `json:"shipping"`
}

// Checkout places an order from the actor's cart. The body is optional: it
// may carry shipping metadata, or be absent entirely.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.checkout.Checkout(r.Context(), actor.ID, req.Shipping)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(o))
}

// OrderTracking returns the aggregated tracking view for an order. Buyers see
// only their own orders; admins see any.
func (h *Handler) OrderTracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	view, err := h.tracking.GetOrderTracking(r.Context(), r.PathValue("id"), actor.ID, actor.Role == RoleAdmin)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CancelOrder is the admin cancel override.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, RoleAdmin)
	if !ok {
		return
	}

	if err := h.admin.CancelOrder(r.Context(), actor.ID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(order.StatusCancelled)})
}

// ForceConfirmOrder is the admin payment-bypass confirmation.
func (h *Handler) ForceConfirmOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, RoleAdmin)
	if !ok {
		return
	}

	if err := h.admin.ForceConfirmOrder(r.Context(), actor.ID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(order.StatusConfirmed)})
}
