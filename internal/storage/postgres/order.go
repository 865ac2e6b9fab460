package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository that uses the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const insertOrderSQL = `INSERT INTO orders (id, buyer_id, status, total_amount, shipping)
	VALUES ($1, $2, $3, $4, $5)`

const insertOrderItemSQL = `INSERT INTO order_items
	(id, order_id, seller_id, product_id, variant_id, quantity, price_snapshot)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create persists an order together with its items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := r.db.q(ctx)

	shipping := o.Shipping
	if shipping == nil {
		shipping = map[string]string{}
	}
	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return fmt.Errorf("encoding shipping for order %q: %w", o.ID, err)
	}

	_, err = q.Exec(ctx, insertOrderSQL, o.ID, o.BuyerID, string(o.Status), o.TotalAmount, shippingJSON)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, it := range o.Items {
		_, err := q.Exec(ctx, insertOrderItemSQL,
			it.ID, o.ID, it.SellerID, it.ProductID, it.VariantID, it.Quantity, it.PriceSnapshot,
		)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", it.ID, err)
		}
	}
	return nil
}

const selectOrderSQL = `SELECT id, buyer_id, status, total_amount, shipping, created_at
	FROM orders WHERE id = $1`

// GetByID loads an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, selectOrderSQL)
}

// GetForUpdate loads an order with its items, locking the order row.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, selectOrderSQL+` FOR UPDATE`)
}

func (r *OrderRepository) get(ctx context.Context, id, query string) (*order.Order, error) {
	q := r.db.q(ctx)

	var o order.Order
	var status string
	var shippingJSON []byte
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.BuyerID, &status, &o.TotalAmount, &shippingJSON, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("loading order %q: %w", id, err)
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(shippingJSON, &o.Shipping); err != nil {
		return nil, fmt.Errorf("decoding shipping for order %q: %w", id, err)
	}

	items, err := r.itemsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

const selectOrderItemsSQL = `SELECT id, order_id, seller_id, product_id, variant_id, quantity, price_snapshot
	FROM order_items WHERE order_id = $1 ORDER BY id`

func (r *OrderRepository) itemsByOrder(ctx context.Context, orderID string) ([]order.Item, error) {
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, selectOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading items for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SellerID, &it.ProductID,
			&it.VariantID, &it.Quantity, &it.PriceSnapshot); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

// SetStatus writes a new order status.
func (r *OrderRepository) SetStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
