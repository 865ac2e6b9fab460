// Package notify is the fire-and-forget notification side channel. Delivery
// failures are logged and never propagated: a failed notification must not
// make a successful payment or shipment transition look failed to the caller.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Kind identifies the notification template.
type Kind string

const (
	KindPaymentCaptured   Kind = "payment.captured"
	KindSellerOrderPlaced Kind = "seller.order_placed"
	KindShipmentShipped   Kind = "shipment.shipped"
	KindShipmentDelivered Kind = "shipment.delivered"
)

// Notifier delivers a notification to a user. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, userID string, meta map[string]string) error
}

// LogNotifier is the default Notifier: it records the notification in the
// request log and does nothing else. Real delivery (email, SMS, push) hangs
// off a queue upstream of this interface.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the notification and always succeeds.
func (n *LogNotifier) Notify(ctx context.Context, kind Kind, userID string, meta map[string]string) error {
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("user_id", userID),
	}
	for k, v := range meta {
		fields = append(fields, zap.String(k, v))
	}
	zctx.From(ctx).Info("notification", fields...)
	return nil
}
