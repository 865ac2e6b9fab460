package postgres

import (
	"context"
	"fmt"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository that uses the given DB.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

const selectCartLinesSQL = `SELECT buyer_id, variant_id, quantity
	FROM cart_lines WHERE buyer_id = $1 ORDER BY created_at`

// LinesByBuyer returns the buyer's current cart lines.
func (r *CartRepository) LinesByBuyer(ctx context.Context, buyerID string) ([]cart.Line, error) {
	rows, err := r.db.q(ctx).Query(ctx, selectCartLinesSQL, buyerID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for buyer %q: %w", buyerID, err)
	}
	defer rows.Close()

	var lines []cart.Line
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.BuyerID, &l.VariantID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scanning cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const clearCartSQL = `DELETE FROM cart_lines WHERE buyer_id = $1`

// Clear removes all of the buyer's cart lines.
func (r *CartRepository) Clear(ctx context.Context, buyerID string) error {
	if _, err := r.db.q(ctx).Exec(ctx, clearCartSQL, buyerID); err != nil {
		return fmt.Errorf("clearing cart for buyer %q: %w", buyerID, err)
	}
	return nil
}
