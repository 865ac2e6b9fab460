// Package inventory is the per-variant stock ledger. Stock is decremented at
// checkout and must never go negative.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrVariantNotFound is returned when a variant does not exist in the ledger.
var ErrVariantNotFound = errors.New("variant not found")

// InsufficientStockError indicates a requested quantity exceeds the variant's
// available stock. Checkout reports it per failing line.
type InsufficientStockError struct {
	VariantID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s (requested %d)", e.VariantID, e.Requested)
}

// Variant is one sellable variant with its current price and stock.
type Variant struct {
	VariantID string
	ProductID string
	SellerID  string
	Price     decimal.Decimal
	Stock     int
}

// Repository defines ledger operations. DecrementStock must be conditional:
// the write fails rather than ever leaving stock negative, which is what
// guards concurrent checkouts against overselling.
type Repository interface {
	// GetVariant returns the current price and stock for a variant.
	// Returns ErrVariantNotFound when absent.
	GetVariant(ctx context.Context, variantID string) (*Variant, error)

	// DecrementStock atomically subtracts qty from the variant's stock.
	// Returns InsufficientStockError when stock < qty at write time.
	DecrementStock(ctx context.Context, variantID string, qty int) error
}
