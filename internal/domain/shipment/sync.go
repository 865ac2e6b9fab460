package shipment

import (
	"context"
	"fmt"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
)

// Synchronizer derives a single order status from the order's independent
// seller shipments. It is invoked after every shipment mutation and is
// idempotent: re-running it against unchanged shipment state writes nothing.
type Synchronizer struct {
	tx        TxRunner
	orders    order.Repository
	shipments Repository
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(tx TxRunner, orders order.Repository, shipments Repository) *Synchronizer {
	return &Synchronizer{tx: tx, orders: orders, shipments: shipments}
}

// Sync recomputes and, when needed, writes the order status. The order row is
// locked and the shipments are read inside one transaction, so the target is
// computed from a consistent snapshot. Status never moves backward: an admin
// override that regresses one shipment of a fully delivered order leaves the
// order DELIVERED.
func (s *Synchronizer) Sync(ctx context.Context, orderID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		shipments, err := s.shipments.ListByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list shipments: %w", err)
		}

		target, ok := aggregate(o, shipments)
		if !ok || target == o.Status {
			return nil
		}

		zctx.From(ctx).Info("order status synchronized",
			zap.String("order_id", orderID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(target)),
		)
		return s.orders.SetStatus(ctx, orderID, target)
	})
}

// aggregate computes the target order status from the shipment set. It
// returns ok=false when no status change should be applied.
func aggregate(o *order.Order, shipments []Shipment) (order.Status, bool) {
	// Cancelled orders are never resurrected, and orders with no shipments
	// yet have nothing to aggregate.
	if o.Status == order.StatusCancelled || len(shipments) == 0 {
		return "", false
	}

	// Every seller with items on the order must have shipped before the
	// order advances; a missing shipment caps the aggregate below SHIPPED.
	if len(shipments) < len(o.SellerIDs()) {
		return "", false
	}

	target, ok := allAtLeast(shipments)
	if !ok {
		return "", false
	}

	// Monotonicity guard: never regress the order.
	if target.Rank() <= o.Status.Rank() {
		return "", false
	}
	return target, true
}

// allAtLeast maps the shipment set to the highest order status every shipment
// has reached: DELIVERED when all delivered, SHIPPED when all at least
// shipped, otherwise no target.
func allAtLeast(shipments []Shipment) (order.Status, bool) {
	minRank := StatusDelivered.Rank()
	for _, sh := range shipments {
		if r := sh.Status.Rank(); r < minRank {
			minRank = r
		}
	}

	switch {
	case minRank >= StatusDelivered.Rank():
		return order.StatusDelivered, true
	case minRank >= StatusShipped.Rank():
		return order.StatusShipped, true
	default:
		return "", false
	}
}
