// Package cart holds the buyer cart lines consumed by checkout. Cart
// management itself (add/remove endpoints) lives upstream; this core only
// reads and clears carts.
package cart

import "context"

// Line is a single variant+quantity entry in a buyer's cart. Quantities and
// prices are re-validated against inventory at checkout; the cart is never
// trusted for pricing.
type Line struct {
	BuyerID   string
	VariantID string
	Quantity  int
}

// Repository defines the cart operations checkout needs.
type Repository interface {
	// LinesByBuyer returns the buyer's current cart lines. An empty slice
	// means an empty cart.
	LinesByBuyer(ctx context.Context, buyerID string) ([]Line, error)

	// Clear removes all of the buyer's cart lines.
	Clear(ctx context.Context, buyerID string) error
}
