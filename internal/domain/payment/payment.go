package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status of a payment attempt. SUCCESS and FAILED are terminal: once reached,
// no further transition is ever applied.
type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether s is a terminal payment status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Payment event types, one row appended per accepted webhook delivery.
const (
	EventWebhook = "WEBHOOK"
	EventFailed  = "FAILED"
)

// Sentinel errors for payment processing.
var (
	ErrNotFound         = errors.New("payment not found")
	ErrAlreadyExists    = errors.New("order already has an active payment")
	ErrOrderNotPayable  = errors.New("order is not payable")
	ErrUnknownProvider  = errors.New("unknown payment provider")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedWebhook = errors.New("malformed webhook payload")
)

// Payment is one payment attempt against an order. ProviderOrderID is the
// gateway-side order id used to correlate inbound webhooks; it is unique
// across all payments.
type Payment struct {
	ID                string
	OrderID           string
	Provider          string
	ProviderOrderID   string
	ProviderPaymentID string
	ProviderSignature string
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Event is an append-only record of a payment state transition.
type Event struct {
	ID        string
	PaymentID string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Repository defines persistence for payments and their events.
//
// MarkSucceeded and MarkFailed are conditional writes: they transition the
// payment out of INITIATED and report whether the row actually changed. A
// false return with no error means another delivery won the race — the caller
// treats that as the documented idempotent no-op.
type Repository interface {
	Create(ctx context.Context, p *Payment) error

	// FindActiveByOrder returns the order's non-FAILED payment, or ErrNotFound.
	FindActiveByOrder(ctx context.Context, orderID string) (*Payment, error)

	// FindByProviderOrderID resolves a webhook correlation key to a payment.
	// Returns ErrNotFound when no payment carries the provider order id.
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*Payment, error)

	// MarkSucceeded transitions INITIATED -> SUCCESS, recording the provider
	// payment id and signature. Returns false when the payment was no longer
	// INITIATED.
	MarkSucceeded(ctx context.Context, id, providerPaymentID, signature string) (bool, error)

	// MarkFailed transitions INITIATED -> FAILED. Returns false when the
	// payment was no longer INITIATED.
	MarkFailed(ctx context.Context, id string) (bool, error)

	AppendEvent(ctx context.Context, e *Event) error
}

// TxRunner executes fn inside a single storage transaction. Everything fn
// writes commits or rolls back as one unit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
