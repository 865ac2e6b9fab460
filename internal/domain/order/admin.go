package order

import (
	"context"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/audit"
)

// Audit actions recorded by admin order overrides.
const (
	ActionCancelOrder       = "order.cancel"
	ActionForceConfirmOrder = "order.force_confirm"
)

// AdminService performs privileged order overrides. Every mutation goes
// through the audit wrapper so the override trail is complete.
type AdminService struct {
	orders Repository
	audit  *audit.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(orders Repository, auditLog *audit.Logger) *AdminService {
	return &AdminService{orders: orders, audit: auditLog}
}

// CancelOrder cancels an order from any non-DELIVERED, non-CANCELLED status.
func (s *AdminService) CancelOrder(ctx context.Context, adminID, orderID string) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if o.Status == StatusDelivered || o.Status == StatusCancelled {
		return &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	entry := audit.Entry{
		ActorID:    adminID,
		Action:     ActionCancelOrder,
		EntityType: "order",
		EntityID:   orderID,
		Metadata: map[string]any{
			"previousStatus": string(o.Status),
			"newStatus":      string(StatusCancelled),
		},
	}
	return s.audit.Audited(ctx, entry, func(ctx context.Context) error {
		return s.orders.SetStatus(ctx, orderID, StatusCancelled)
	})
}

// ForceConfirmOrder confirms an order bypassing payment. Only permitted from
// PLACED; the audit entry carries an explicit bypassedPayment marker so
// settlement reconciliation can tell forced confirmations from paid ones.
func (s *AdminService) ForceConfirmOrder(ctx context.Context, adminID, orderID string) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if o.Status != StatusPlaced {
		return &InvalidTransitionError{From: o.Status, To: StatusConfirmed}
	}

	entry := audit.Entry{
		ActorID:    adminID,
		Action:     ActionForceConfirmOrder,
		EntityType: "order",
		EntityID:   orderID,
		Metadata: map[string]any{
			"previousStatus":  string(o.Status),
			"newStatus":       string(StatusConfirmed),
			"bypassedPayment": true,
		},
	}
	return s.audit.Audited(ctx, entry, func(ctx context.Context) error {
		return s.orders.SetStatus(ctx, orderID, StatusConfirmed)
	})
}
