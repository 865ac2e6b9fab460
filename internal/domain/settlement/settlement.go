// Package settlement holds the per-line ledger of money owed to sellers.
// Settlements are created exactly once per order item when payment succeeds;
// payout execution is a separate process and out of scope here.
package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status of a seller settlement.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
)

// SellerSettlement records money owed to one seller for one order line.
type SellerSettlement struct {
	ID          string
	OrderID     string
	OrderItemID string
	SellerID    string
	Amount      decimal.Decimal
	Status      Status
	CreatedAt   time.Time
}

// Repository persists settlements. CreateBatch relies on the unique
// order_item_id constraint: a duplicate fan-out for the same order must fail
// rather than double-credit sellers.
type Repository interface {
	CreateBatch(ctx context.Context, settlements []SellerSettlement) error
	ListByOrder(ctx context.Context, orderID string) ([]SellerSettlement, error)
}
