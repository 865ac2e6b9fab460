package postgres

import (
	"context"
	"fmt"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/settlement"
)

var _ settlement.Repository = (*SettlementRepository)(nil)

// SettlementRepository implements settlement.Repository backed by PostgreSQL.
type SettlementRepository struct {
	db *DB
}

// NewSettlementRepository returns a SettlementRepository that uses the given DB.
func NewSettlementRepository(db *DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

const insertSettlementSQL = `INSERT INTO seller_settlements
	(id, order_id, order_item_id, seller_id, amount, status)
	VALUES ($1, $2, $3, $4, $5, $6)`

// CreateBatch persists the settlement fan-out for one order. The unique
// order_item_id constraint turns an accidental duplicate fan-out into an
// error instead of a double credit.
func (r *SettlementRepository) CreateBatch(ctx context.Context, settlements []settlement.SellerSettlement) error {
	q := r.db.q(ctx)
	for _, s := range settlements {
		_, err := q.Exec(ctx, insertSettlementSQL,
			s.ID, s.OrderID, s.OrderItemID, s.SellerID, s.Amount, string(s.Status))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("settlement already exists for order item %q: %w", s.OrderItemID, err)
			}
			return fmt.Errorf("creating settlement %q: %w", s.ID, err)
		}
	}
	return nil
}

const selectSettlementsSQL = `SELECT id, order_id, order_item_id, seller_id, amount, status, created_at
	FROM seller_settlements WHERE order_id = $1 ORDER BY created_at, id`

// ListByOrder returns all settlements for an order.
func (r *SettlementRepository) ListByOrder(ctx context.Context, orderID string) ([]settlement.SellerSettlement, error) {
	rows, err := r.db.q(ctx).Query(ctx, selectSettlementsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing settlements for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var out []settlement.SellerSettlement
	for rows.Next() {
		var s settlement.SellerSettlement
		var status string
		if err := rows.Scan(&s.ID, &s.OrderID, &s.OrderItemID, &s.SellerID,
			&s.Amount, &status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning settlement: %w", err)
		}
		s.Status = settlement.Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}
