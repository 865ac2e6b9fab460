package shipment

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/audit"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/notify"
)

type nopTx struct{}

func (nopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memOrderRepo struct {
	orders map[string]*order.Order
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memOrderRepo) SetStatus(_ context.Context, id string, status order.Status) error {
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

type memShipmentRepo struct {
	shipments map[string]*Shipment
	events    []Event
}

func newMemShipmentRepo() *memShipmentRepo {
	return &memShipmentRepo{shipments: map[string]*Shipment{}}
}

func (r *memShipmentRepo) Create(_ context.Context, s *Shipment) error {
	for _, existing := range r.shipments {
		if existing.OrderID == s.OrderID && existing.SellerID == s.SellerID {
			return ErrAlreadyExists
		}
	}
	cp := *s
	cp.CreatedAt = time.Now().UTC()
	r.shipments[s.ID] = &cp
	return nil
}

func (r *memShipmentRepo) GetByID(_ context.Context, id string) (*Shipment, error) {
	s, ok := r.shipments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memShipmentRepo) GetForUpdate(ctx context.Context, id string) (*Shipment, error) {
	return r.GetByID(ctx, id)
}

func (r *memShipmentRepo) ListByOrder(_ context.Context, orderID string) ([]Shipment, error) {
	var out []Shipment
	for _, s := range r.shipments {
		if s.OrderID == orderID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memShipmentRepo) SetStatus(_ context.Context, id string, status Status, at time.Time) error {
	s, ok := r.shipments[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	switch status {
	case StatusShipped:
		s.ShippedAt = &at
	case StatusDelivered:
		s.DeliveredAt = &at
	}
	return nil
}

func (r *memShipmentRepo) AppendEvent(_ context.Context, e *Event) error {
	r.events = append(r.events, *e)
	return nil
}

func (r *memShipmentRepo) ListEvents(_ context.Context, shipmentID string) ([]Event, error) {
	var out []Event
	for _, e := range r.events {
		if e.ShipmentID == shipmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memAuditRepo struct {
	entries []audit.Entry
}

func (r *memAuditRepo) Append(_ context.Context, e *audit.Entry) error {
	r.entries = append(r.entries, *e)
	return nil
}

type recordNotifier struct {
	mu   sync.Mutex
	sent []notify.Kind
}

func (n *recordNotifier) Notify(_ context.Context, kind notify.Kind, _ string, _ map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, kind)
	return nil
}

type memStore struct {
	data        map[string]string
	invalidated []string
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.data[key] = value
	return nil
}

func (s *memStore) Invalidate(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
		s.invalidated = append(s.invalidated, k)
	}
	return nil
}

func amount(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// twoSellerOrder builds a CONFIRMED order with one item each for seller-a and
// seller-b.
func twoSellerOrder(id string) *order.Order {
	return &order.Order{
		ID:          id,
		BuyerID:     "buyer-1",
		Status:      order.StatusConfirmed,
		TotalAmount: amount("300.00"),
		Items: []order.Item{
			{ID: id + "-item-1", OrderID: id, SellerID: "seller-a", Quantity: 1, PriceSnapshot: amount("100.00")},
			{ID: id + "-item-2", OrderID: id, SellerID: "seller-b", Quantity: 1, PriceSnapshot: amount("200.00")},
		},
	}
}
