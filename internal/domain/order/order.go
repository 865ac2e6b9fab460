package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Transitions are monotone except
// for the admin cancel path.
type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// statusRank orders the forward lifecycle. CANCELLED sits outside the
// progression and is only reachable by admin cancel.
var statusRank = map[Status]int{
	StatusPlaced:    0,
	StatusConfirmed: 1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// Rank returns the forward-progression rank of s, or -1 for CANCELLED and
// unknown statuses.
func (s Status) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrForbidden is returned when the requesting user is not allowed to see the
// order. Handlers must surface it identically to ErrNotFound so non-owners
// cannot probe for order existence.
var ErrForbidden = errors.New("order access denied")

// InvalidTransitionError indicates an order status change that the lifecycle
// does not permit.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return "invalid order status transition from " + string(e.From) + " to " + string(e.To)
}

// Order is the source-of-truth record for a buyer's purchase. TotalAmount is
// fixed at creation and never recomputed. Shipping is optional free-form
// metadata (address lines, delivery notes) captured at checkout.
type Order struct {
	ID          string
	BuyerID     string
	Status      Status
	TotalAmount decimal.Decimal
	Shipping    map[string]string
	Items       []Item
	CreatedAt   time.Time
}

// Item is one order line. PriceSnapshot is the variant price frozen at
// checkout time; it never changes afterwards.
type Item struct {
	ID            string
	OrderID       string
	SellerID      string
	ProductID     string
	VariantID     string
	Quantity      int
	PriceSnapshot decimal.Decimal
}

// SellerIDs returns the distinct seller ids across the order's items, in
// first-seen order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	var ids []string
	for _, it := range o.Items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		ids = append(ids, it.SellerID)
	}
	return ids
}

// HasSellerItems reports whether the given seller owns at least one item.
func (o *Order) HasSellerItems(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// Repository defines persistence operations for orders and their items.
type Repository interface {
	// Create persists an order together with its items.
	Create(ctx context.Context, o *Order) error

	// GetByID loads an order with its items. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*Order, error)

	// GetForUpdate loads an order with its items and locks the order row for
	// the duration of the surrounding transaction. Returns ErrNotFound when
	// absent.
	GetForUpdate(ctx context.Context, id string) (*Order, error)

	// SetStatus writes a new status for the order.
	SetStatus(ctx context.Context, id string, status Status) error
}
