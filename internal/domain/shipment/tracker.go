package shipment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ritesh5001/tatvivah-marketplace/internal/cache"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/audit"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/notify"
)

// ActionShipmentOverride is the audit action for admin shipment overrides.
const ActionShipmentOverride = "shipment.override"

// Tracker manages per-seller shipments: creation, forward-only status
// transitions, and the audited admin override path. Every mutation triggers
// the order status Synchronizer.
type Tracker struct {
	tx        TxRunner
	shipments Repository
	orders    order.Repository
	sync      *Synchronizer
	audit     *audit.Logger
	notifier  notify.Notifier
	store     cache.Store
}

// NewTracker creates a Tracker.
func NewTracker(
	tx TxRunner,
	shipments Repository,
	orders order.Repository,
	sync *Synchronizer,
	auditLog *audit.Logger,
	notifier notify.Notifier,
	store cache.Store,
) *Tracker {
	return &Tracker{
		tx:        tx,
		shipments: shipments,
		orders:    orders,
		sync:      sync,
		audit:     auditLog,
		notifier:  notifier,
		store:     store,
	}
}

// Create registers a seller's shipment for a confirmed order. The order must
// be CONFIRMED, the seller must own at least one item on it, and no shipment
// may already exist for the (order, seller) pair. The order row stays locked
// from the status check through the insert, so a concurrent admin cancel
// cannot slip a shipment onto a CANCELLED order.
func (t *Tracker) Create(ctx context.Context, orderID, sellerID, carrier, trackingNumber string) (*Shipment, error) {
	sh := &Shipment{
		ID:             uuid.New().String(),
		OrderID:        orderID,
		SellerID:       sellerID,
		Carrier:        carrier,
		TrackingNumber: trackingNumber,
		Status:         StatusCreated,
	}

	err := t.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := t.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusConfirmed {
			return ErrOrderNotShippable
		}
		if !o.HasSellerItems(sellerID) {
			return ErrNoSellerItems
		}

		if err := t.shipments.Create(ctx, sh); err != nil {
			return err
		}
		return t.shipments.AppendEvent(ctx, &Event{
			ID:         uuid.New().String(),
			ShipmentID: sh.ID,
			Status:     StatusCreated,
			Note:       "shipment created",
		})
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateLogged(ctx, t.store, cache.OrderTrackingKey(orderID))
	return sh, nil
}

// UpdateStatus applies a seller's forward-only status transition. The
// shipment row is locked for the transition, so a double-submitted "mark
// shipped" cannot apply twice. On success the order status is resynchronized
// and the buyer is notified best effort.
func (t *Tracker) UpdateStatus(ctx context.Context, shipmentID, sellerID string, newStatus Status, note string) (*Shipment, error) {
	if !newStatus.Valid() {
		return nil, &InvalidTransitionError{To: newStatus}
	}

	var updated *Shipment
	err := t.tx.InTx(ctx, func(ctx context.Context) error {
		sh, err := t.shipments.GetForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if sh.SellerID != sellerID {
			// Reported as not-found upstream so non-owners cannot probe for
			// other sellers' shipment ids.
			return ErrNotOwner
		}
		if !forwardStep(sh.Status, newStatus) {
			return &InvalidTransitionError{From: sh.Status, To: newStatus}
		}

		now := time.Now().UTC()
		if err := t.shipments.SetStatus(ctx, sh.ID, newStatus, now); err != nil {
			return fmt.Errorf("set shipment status: %w", err)
		}
		if err := t.shipments.AppendEvent(ctx, &Event{
			ID:         uuid.New().String(),
			ShipmentID: sh.ID,
			Status:     newStatus,
			Note:       note,
		}); err != nil {
			return fmt.Errorf("append shipment event: %w", err)
		}

		sh.Status = newStatus
		switch newStatus {
		case StatusShipped:
			sh.ShippedAt = &now
		case StatusDelivered:
			sh.DeliveredAt = &now
		}
		updated = sh
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := t.sync.Sync(ctx, updated.OrderID); err != nil {
		return nil, fmt.Errorf("synchronize order status: %w", err)
	}

	cache.InvalidateLogged(ctx, t.store, cache.OrderTrackingKey(updated.OrderID))
	t.notifyBuyer(ctx, updated)
	return updated, nil
}

// AdminOverride sets any shipment status directly, bypassing the forward-only
// constraint. The event note records the override and the action is audit
// logged with previous and new status, then the order is resynchronized.
func (t *Tracker) AdminOverride(ctx context.Context, shipmentID, adminID string, newStatus Status, note string) (*Shipment, error) {
	if !newStatus.Valid() {
		return nil, &InvalidTransitionError{To: newStatus}
	}

	var updated *Shipment
	var previous Status
	err := t.tx.InTx(ctx, func(ctx context.Context) error {
		sh, err := t.shipments.GetForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		previous = sh.Status

		now := time.Now().UTC()
		if err := t.shipments.SetStatus(ctx, sh.ID, newStatus, now); err != nil {
			return fmt.Errorf("set shipment status: %w", err)
		}
		if err := t.shipments.AppendEvent(ctx, &Event{
			ID:         uuid.New().String(),
			ShipmentID: sh.ID,
			Status:     newStatus,
			Note:       "admin override: " + note,
		}); err != nil {
			return fmt.Errorf("append shipment event: %w", err)
		}

		sh.Status = newStatus
		updated = sh
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := t.audit.Log(ctx, audit.Entry{
		ActorID:    adminID,
		Action:     ActionShipmentOverride,
		EntityType: "shipment",
		EntityID:   shipmentID,
		Metadata: map[string]any{
			"previousStatus": string(previous),
			"newStatus":      string(newStatus),
			"note":           note,
		},
	}); err != nil {
		return nil, fmt.Errorf("audit shipment override: %w", err)
	}

	if err := t.sync.Sync(ctx, updated.OrderID); err != nil {
		return nil, fmt.Errorf("synchronize order status: %w", err)
	}

	cache.InvalidateLogged(ctx, t.store, cache.OrderTrackingKey(updated.OrderID))
	return updated, nil
}

// forwardStep reports whether from -> to is a permitted seller transition.
// DELIVERED is terminal.
func forwardStep(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusShipped
	case StatusShipped:
		return to == StatusDelivered
	default:
		return false
	}
}

// notifyBuyer sends ship/deliver notifications, best effort.
func (t *Tracker) notifyBuyer(ctx context.Context, sh *Shipment) {
	var kind notify.Kind
	switch sh.Status {
	case StatusShipped:
		kind = notify.KindShipmentShipped
	case StatusDelivered:
		kind = notify.KindShipmentDelivered
	default:
		return
	}

	o, err := t.orders.GetByID(ctx, sh.OrderID)
	if err != nil {
		zctx.From(ctx).Warn("load order for notification failed",
			zap.String("order_id", sh.OrderID), zap.Error(err))
		return
	}

	if err := t.notifier.Notify(ctx, kind, o.BuyerID, map[string]string{
		"order_id":        sh.OrderID,
		"shipment_id":     sh.ID,
		"carrier":         sh.Carrier,
		"tracking_number": sh.TrackingNumber,
	}); err != nil {
		zctx.From(ctx).Warn("buyer shipment notification failed",
			zap.String("shipment_id", sh.ID), zap.Error(err))
	}
}
