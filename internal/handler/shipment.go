package handler

import (
	"net/http"
	"time"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/shipment"
)

type createShipmentRequest struct {
	OrderID        string `json:"order_id"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type shipmentResponse struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	SellerID       string          `json:"seller_id"`
	Carrier        string          `json:"carrier"`
	TrackingNumber string          `json:"tracking_number"`
	Status         shipment.Status `json:"status"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
}

func newShipmentResponse(sh *shipment.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:             sh.ID,
		OrderID:        sh.OrderID,
		SellerID:       sh.SellerID,
		Carrier:        sh.Carrier,
		TrackingNumber: sh.TrackingNumber,
		Status:         sh.Status,
		ShippedAt:      sh.ShippedAt,
		DeliveredAt:    sh.DeliveredAt,
	}
}

// CreateShipment registers a seller's shipment for a confirmed order.
func (h *Handler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, RoleSeller)
	if !ok {
		return
	}

	var req createShipmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.Carrier == "" || req.TrackingNumber == "" {
		writeError(w, http.StatusBadRequest, "order_id, carrier and tracking_number are required")
		return
	}

	sh, err := h.tracker.Create(r.Context(), req.OrderID, actor.ID, req.Carrier, req.TrackingNumber)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newShipmentResponse(sh))
}

type updateShipmentStatusRequest struct {
	Status shipment.Status `json:"status"`
	Note   string          `json:"note"`
}

// UpdateShipmentStatus applies a seller's forward-only status transition.
func (h *Handler) UpdateShipmentStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, RoleSeller)
	if !ok {
		return
	}

	var req updateShipmentStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sh, err := h.tracker.UpdateStatus(r.Context(), r.PathValue("id"), actor.ID, req.Status, req.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShipmentResponse(sh))
}

type overrideShipmentRequest struct {
	Status shipment.Status `json:"status"`
	Note   string          `json:"note"`
}

// OverrideShipment is the audited admin path that may set any status.
func (h *Handler) OverrideShipment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, RoleAdmin)
	if !ok {
		return
	}

	var req overrideShipmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Note == "" {
		writeError(w, http.StatusBadRequest, "note is required")
		return
	}

	sh, err := h.tracker.AdminOverride(r.Context(), r.PathValue("id"), actor.ID, req.Status, req.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShipmentResponse(sh))
}
