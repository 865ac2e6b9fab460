package handler

import (
	"io"
	"net/http"
)

type initiatePaymentRequest struct {
	Provider string `json:"provider"`
}

type initiatePaymentResponse struct {
	PaymentID       string            `json:"payment_id"`
	ProviderOrderID string            `json:"provider_order_id"`
	CheckoutParams  map[string]string `json:"checkout_params"`
}

// InitiatePayment creates a payment intent for the actor's order.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req initiatePaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	res, err := h.payments.Initiate(r.Context(), r.PathValue("id"), actor.ID, req.Provider)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, initiatePaymentResponse{
		PaymentID:       res.PaymentID,
		ProviderOrderID: res.ProviderOrderID,
		CheckoutParams:  res.CheckoutParams,
	})
}

// webhookSignature extracts the signature the gateway attached to the
// delivery. Razorpay uses its own header; other providers use the generic one.
func webhookSignature(r *http.Request) string {
	if sig := r.Header.Get("X-Razorpay-Signature"); sig != "" {
		return sig
	}
	return r.Header.Get("X-Webhook-Signature")
}

// maxWebhookBody caps gateway deliveries; real payloads are a few KB.
const maxWebhookBody = 1 << 20

// PaymentWebhook receives gateway callbacks. The raw body is read before any
// decoding because the signature covers the exact bytes on the wire. A 2xx
// acknowledges the delivery; signature failures return 401 so the gateway
// retries after the secret is fixed.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.payments.ApplyWebhook(r.Context(), r.PathValue("provider"), body, webhookSignature(r)); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
