package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/inventory"
)

var _ inventory.Repository = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Repository backed by PostgreSQL.
type InventoryRepository struct {
	db *DB
}

// NewInventoryRepository returns an InventoryRepository that uses the given DB.
func NewInventoryRepository(db *DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const selectVariantSQL = `SELECT variant_id, product_id, seller_id, price, stock
	FROM inventory WHERE variant_id = $1`

// GetVariant returns the current price and stock for a variant.
func (r *InventoryRepository) GetVariant(ctx context.Context, variantID string) (*inventory.Variant, error) {
	var v inventory.Variant
	err := r.db.q(ctx).QueryRow(ctx, selectVariantSQL, variantID).
		Scan(&v.VariantID, &v.ProductID, &v.SellerID, &v.Price, &v.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inventory.ErrVariantNotFound
		}
		return nil, fmt.Errorf("loading variant %q: %w", variantID, err)
	}
	return &v, nil
}

// decrementStockSQL only matches when enough stock remains, so the check and
// the write are one atomic statement.
const decrementStockSQL = `UPDATE inventory SET stock = stock - $2, updated_at = now()
	WHERE variant_id = $1 AND stock >= $2`

// DecrementStock atomically subtracts qty from the variant's stock.
func (r *InventoryRepository) DecrementStock(ctx context.Context, variantID string, qty int) error {
	tag, err := r.db.q(ctx).Exec(ctx, decrementStockSQL, variantID, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", variantID, err)
	}
	if tag.RowsAffected() == 0 {
		return &inventory.InsufficientStockError{VariantID: variantID, Requested: qty}
	}
	return nil
}
