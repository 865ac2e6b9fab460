// Package handler exposes the order lifecycle engine over HTTP. Handlers
// decode requests, resolve the actor, delegate to the domain services, and
// map domain errors to status codes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/checkout"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/payment"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/shipment"
)

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	checkout *checkout.Service
	payments *payment.Processor
	tracker  *shipment.Tracker
	tracking *shipment.TrackingReader
	admin    *order.AdminService
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(
	checkoutSvc *checkout.Service,
	payments *payment.Processor,
	tracker *shipment.Tracker,
	tracking *shipment.TrackingReader,
	admin *order.AdminService,
) *Handler {
	return &Handler{
		checkout: checkoutSvc,
		payments: payments,
		tracker:  tracker,
		tracking: tracking,
		admin:    admin,
	}
}

// Register adds the API routes to mux. Identity extraction is applied by the
// caller via WithActor around the whole mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/orders/{id}/payments", h.InitiatePayment)
	mux.HandleFunc("POST /api/webhooks/payments/{provider}", h.PaymentWebhook)
	mux.HandleFunc("GET /api/orders/{id}/tracking", h.OrderTracking)
	mux.HandleFunc("POST /api/shipments", h.CreateShipment)
	mux.HandleFunc("POST /api/shipments/{id}/status", h.UpdateShipmentStatus)
	mux.HandleFunc("POST /api/admin/shipments/{id}/override", h.OverrideShipment)
	mux.HandleFunc("POST /api/admin/orders/{id}/cancel", h.CancelOrder)
	mux.HandleFunc("POST /api/admin/orders/{id}/force-confirm", h.ForceConfirmOrder)
}

// apiError is the JSON error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Code: status, Message: message})
}

// respondError maps a domain error to an HTTP response, logging unexpected
// failures without leaking their details to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		message = "internal error"
	}
	writeError(w, status, message)
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
