package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/shipment"
)

var _ shipment.Repository = (*ShipmentRepository)(nil)

// ShipmentRepository implements shipment.Repository backed by PostgreSQL.
type ShipmentRepository struct {
	db *DB
}

// NewShipmentRepository returns a ShipmentRepository that uses the given DB.
func NewShipmentRepository(db *DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

const insertShipmentSQL = `INSERT INTO shipments
	(id, order_id, seller_id, carrier, tracking_number, status)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Create persists a new shipment. The (order_id, seller_id) unique constraint
// maps to shipment.ErrAlreadyExists.
func (r *ShipmentRepository) Create(ctx context.Context, s *shipment.Shipment) error {
	_, err := r.db.q(ctx).Exec(ctx, insertShipmentSQL,
		s.ID, s.OrderID, s.SellerID, s.Carrier, s.TrackingNumber, string(s.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return shipment.ErrAlreadyExists
		}
		return fmt.Errorf("creating shipment %q: %w", s.ID, err)
	}
	return nil
}

const selectShipmentSQL = `SELECT id, order_id, seller_id, carrier, tracking_number,
	status, shipped_at, delivered_at, created_at
	FROM shipments`

// GetByID loads a shipment.
func (r *ShipmentRepository) GetByID(ctx context.Context, id string) (*shipment.Shipment, error) {
	row := r.db.q(ctx).QueryRow(ctx, selectShipmentSQL+` WHERE id = $1`, id)
	return scanShipment(row)
}

// GetForUpdate loads a shipment and locks its row.
func (r *ShipmentRepository) GetForUpdate(ctx context.Context, id string) (*shipment.Shipment, error) {
	row := r.db.q(ctx).QueryRow(ctx, selectShipmentSQL+` WHERE id = $1 FOR UPDATE`, id)
	return scanShipment(row)
}

func scanShipment(row pgx.Row) (*shipment.Shipment, error) {
	var s shipment.Shipment
	var status string
	err := row.Scan(&s.ID, &s.OrderID, &s.SellerID, &s.Carrier, &s.TrackingNumber,
		&status, &s.ShippedAt, &s.DeliveredAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipment.ErrNotFound
		}
		return nil, fmt.Errorf("loading shipment: %w", err)
	}
	s.Status = shipment.Status(status)
	return &s, nil
}

// ListByOrder returns all shipments for an order.
func (r *ShipmentRepository) ListByOrder(ctx context.Context, orderID string) ([]shipment.Shipment, error) {
	rows, err := r.db.q(ctx).Query(ctx, selectShipmentSQL+` WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing shipments for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var out []shipment.Shipment
	for rows.Next() {
		var s shipment.Shipment
		var status string
		if err := rows.Scan(&s.ID, &s.OrderID, &s.SellerID, &s.Carrier, &s.TrackingNumber,
			&status, &s.ShippedAt, &s.DeliveredAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning shipment: %w", err)
		}
		s.Status = shipment.Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

const updateShipmentStatusSQL = `UPDATE shipments SET status = $2,
	shipped_at = CASE WHEN $2 = 'SHIPPED' THEN $3 ELSE shipped_at END,
	delivered_at = CASE WHEN $2 = 'DELIVERED' THEN $3 ELSE delivered_at END,
	updated_at = now()
	WHERE id = $1`

// SetStatus writes the shipment status and stamps shipped_at/delivered_at for
// the matching transition.
func (r *ShipmentRepository) SetStatus(ctx context.Context, id string, status shipment.Status, at time.Time) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateShipmentStatusSQL, id, string(status), at)
	if err != nil {
		return fmt.Errorf("updating shipment %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shipment.ErrNotFound
	}
	return nil
}

const insertShipmentEventSQL = `INSERT INTO shipment_events (id, shipment_id, status, note)
	VALUES ($1, $2, $3, $4)`

// AppendEvent records one shipment status change.
func (r *ShipmentRepository) AppendEvent(ctx context.Context, e *shipment.Event) error {
	_, err := r.db.q(ctx).Exec(ctx, insertShipmentEventSQL, e.ID, e.ShipmentID, string(e.Status), e.Note)
	if err != nil {
		return fmt.Errorf("appending shipment event for %q: %w", e.ShipmentID, err)
	}
	return nil
}

const selectShipmentEventsSQL = `SELECT id, shipment_id, status, note, created_at
	FROM shipment_events WHERE shipment_id = $1 ORDER BY created_at, id`

// ListEvents returns a shipment's events, oldest first.
func (r *ShipmentRepository) ListEvents(ctx context.Context, shipmentID string) ([]shipment.Event, error) {
	rows, err := r.db.q(ctx).Query(ctx, selectShipmentEventsSQL, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("listing events for shipment %q: %w", shipmentID, err)
	}
	defer rows.Close()

	var out []shipment.Event
	for rows.Next() {
		var e shipment.Event
		var status string
		if err := rows.Scan(&e.ID, &e.ShipmentID, &status, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning shipment event: %w", err)
		}
		e.Status = shipment.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
