package shipment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ritesh5001/tatvivah-marketplace/internal/cache"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
)

// TrackingView is the buyer-facing aggregate of an order and its shipments.
type TrackingView struct {
	OrderID     string         `json:"order_id"`
	OrderStatus order.Status   `json:"order_status"`
	Shipments   []ShipmentView `json:"shipments"`
}

// ShipmentView is one shipment in the tracking response. Seller identity is
// limited to the seller id already visible on the buyer's own order.
type ShipmentView struct {
	ID             string     `json:"id"`
	SellerID       string     `json:"seller_id"`
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	Status         Status     `json:"status"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// TrackingReader serves order tracking views, cache-first. The cache is never
// authoritative: it only mirrors what the order store said, and every
// mutation path invalidates it.
type TrackingReader struct {
	orders    order.Repository
	shipments Repository
	store     cache.Store
	ttl       time.Duration
}

// NewTrackingReader creates a TrackingReader. ttl bounds staleness for the
// cached view.
func NewTrackingReader(orders order.Repository, shipments Repository, store cache.Store, ttl time.Duration) *TrackingReader {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TrackingReader{orders: orders, shipments: shipments, store: store, ttl: ttl}
}

// GetOrderTracking returns the tracking view for an order. Only the order's
// buyer may view it unless isAdmin is set; non-owners receive
// order.ErrNotFound so they cannot distinguish "absent" from "not yours".
func (r *TrackingReader) GetOrderTracking(ctx context.Context, orderID, requestingUserID string, isAdmin bool) (*TrackingView, error) {
	lg := zctx.From(ctx)
	key := cache.OrderTrackingKey(orderID)

	// Ownership is always checked against the order store, even on a cache
	// hit, so a cached view can never leak across users.
	o, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.BuyerID != requestingUserID {
		return nil, order.ErrNotFound
	}

	if raw, found, err := r.store.Get(ctx, key); err != nil {
		lg.Warn("tracking cache read failed", zap.String("order_id", orderID), zap.Error(err))
	} else if found {
		var view TrackingView
		if err := json.Unmarshal([]byte(raw), &view); err == nil {
			return &view, nil
		}
		lg.Warn("tracking cache entry corrupt, dropping", zap.String("order_id", orderID))
		cache.InvalidateLogged(ctx, r.store, key)
	}

	shipments, err := r.shipments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	view := &TrackingView{
		OrderID:     o.ID,
		OrderStatus: o.Status,
		Shipments:   make([]ShipmentView, 0, len(shipments)),
	}
	for _, sh := range shipments {
		view.Shipments = append(view.Shipments, ShipmentView{
			ID:             sh.ID,
			SellerID:       sh.SellerID,
			Carrier:        sh.Carrier,
			TrackingNumber: sh.TrackingNumber,
			Status:         sh.Status,
			ShippedAt:      sh.ShippedAt,
			DeliveredAt:    sh.DeliveredAt,
		})
	}

	if raw, err := json.Marshal(view); err == nil {
		if err := r.store.Set(ctx, key, string(raw), r.ttl); err != nil {
			lg.Warn("tracking cache write failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return view, nil
}
