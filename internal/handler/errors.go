package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/checkout"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/inventory"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/payment"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/shipment"
)

// mapError converts domain errors to HTTP status codes and user-facing
// messages. Ownership failures deliberately collapse into 404 so non-owners
// cannot probe for the existence of other users' resources.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, payment.ErrMalformedWebhook):
		return http.StatusBadRequest, "malformed webhook payload"
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, payment.ErrUnknownProvider):
		return http.StatusNotFound, "unknown payment provider"
	case errors.Is(err, payment.ErrAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, payment.ErrOrderNotPayable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound, "payment not found"

	case errors.Is(err, shipment.ErrAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, shipment.ErrOrderNotShippable),
		errors.Is(err, shipment.ErrNoSellerItems):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, shipment.ErrNotOwner),
		errors.Is(err, shipment.ErrNotFound):
		return http.StatusNotFound, "shipment not found"

	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrForbidden):
		return http.StatusNotFound, "order not found"

	case errors.Is(err, inventory.ErrVariantNotFound):
		return http.StatusUnprocessableEntity, err.Error()
	}

	var insufficientErr *inventory.InsufficientStockError
	if errors.As(err, &insufficientErr) {
		return http.StatusUnprocessableEntity, insufficientErr.Error()
	}

	var orderTransitionErr *order.InvalidTransitionError
	if errors.As(err, &orderTransitionErr) {
		return http.StatusUnprocessableEntity, orderTransitionErr.Error()
	}

	var shipmentTransitionErr *shipment.InvalidTransitionError
	if errors.As(err, &shipmentTransitionErr) {
		return http.StatusUnprocessableEntity, shipmentTransitionErr.Error()
	}

	return http.StatusInternalServerError, "internal error"
}
