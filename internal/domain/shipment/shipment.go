package shipment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status of one seller's shipment. The non-admin path is strictly forward:
// CREATED -> SHIPPED -> DELIVERED.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
)

// statusRank orders shipment statuses for the all-at-least aggregation.
var statusRank = map[Status]int{
	StatusCreated:   0,
	StatusShipped:   1,
	StatusDelivered: 2,
}

// Rank returns the progression rank of s, or -1 for unknown statuses.
func (s Status) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether s is a known shipment status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Sentinel errors for shipment operations.
var (
	ErrNotFound          = errors.New("shipment not found")
	ErrOrderNotShippable = errors.New("order not shippable yet")
	ErrNoSellerItems     = errors.New("no items for this seller")
	ErrAlreadyExists     = errors.New("shipment already exists")
	ErrNotOwner          = errors.New("shipment does not belong to this seller")
)

// InvalidTransitionError indicates a shipment status change outside the
// forward-only edge set.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return "invalid shipment status transition from " + string(e.From) + " to " + string(e.To)
}

// Shipment is one seller's fulfilment of their items on an order. At most one
// shipment exists per (order, seller) pair.
type Shipment struct {
	ID             string
	OrderID        string
	SellerID       string
	Carrier        string
	TrackingNumber string
	Status         Status
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
}

// Event is an append-only record of one shipment status change, including
// admin overrides.
type Event struct {
	ID         string
	ShipmentID string
	Status     Status
	Note       string
	CreatedAt  time.Time
}

// Repository defines persistence for shipments and their events.
type Repository interface {
	// Create persists a new shipment. Returns ErrAlreadyExists when the
	// (order, seller) pair already has one.
	Create(ctx context.Context, s *Shipment) error

	// GetByID loads a shipment. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*Shipment, error)

	// GetForUpdate loads a shipment and locks its row for the duration of
	// the surrounding transaction, serializing concurrent transitions.
	GetForUpdate(ctx context.Context, id string) (*Shipment, error)

	// ListByOrder returns all shipments for an order.
	ListByOrder(ctx context.Context, orderID string) ([]Shipment, error)

	// SetStatus writes the shipment status and the matching timestamp
	// (shipped_at or delivered_at) when non-nil.
	SetStatus(ctx context.Context, id string, status Status, at time.Time) error

	// AppendEvent records one status change.
	AppendEvent(ctx context.Context, e *Event) error

	// ListEvents returns a shipment's events, oldest first.
	ListEvents(ctx context.Context, shipmentID string) ([]Event, error)
}

// TxRunner executes fn inside a single storage transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
