package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/payment"
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository returns a PaymentRepository that uses the given DB.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const insertPaymentSQL = `INSERT INTO payments
	(id, order_id, provider, provider_order_id, status)
	VALUES ($1, $2, $3, $4, $5)`

// Create persists a new payment attempt. The partial unique index on
// (order_id) WHERE status <> 'FAILED' maps to payment.ErrAlreadyExists, so of
// two racing initiations only one ever inserts an active row.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.db.q(ctx).Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.Provider, p.ProviderOrderID, string(p.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return payment.ErrAlreadyExists
		}
		return fmt.Errorf("creating payment %q: %w", p.ID, err)
	}
	return nil
}

const selectPaymentSQL = `SELECT id, order_id, provider, provider_order_id,
	COALESCE(provider_payment_id, ''), COALESCE(provider_signature, ''),
	status, created_at, updated_at
	FROM payments`

// FindActiveByOrder returns the order's most recent non-FAILED payment.
func (r *PaymentRepository) FindActiveByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	row := r.db.q(ctx).QueryRow(ctx,
		selectPaymentSQL+` WHERE order_id = $1 AND status <> 'FAILED' ORDER BY created_at DESC LIMIT 1`,
		orderID)
	return scanPayment(row)
}

// FindByProviderOrderID resolves a webhook correlation key to a payment.
func (r *PaymentRepository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*payment.Payment, error) {
	row := r.db.q(ctx).QueryRow(ctx,
		selectPaymentSQL+` WHERE provider_order_id = $1`, providerOrderID)
	return scanPayment(row)
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	var status string
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderOrderID,
		&p.ProviderPaymentID, &p.ProviderSignature, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("loading payment: %w", err)
	}
	p.Status = payment.Status(status)
	return &p, nil
}

// markSucceededSQL only matches INITIATED rows: the first accepted webhook
// wins and every duplicate sees zero rows affected.
const markSucceededSQL = `UPDATE payments
	SET status = 'SUCCESS', provider_payment_id = $2, provider_signature = $3, updated_at = now()
	WHERE id = $1 AND status = 'INITIATED'`

// MarkSucceeded transitions INITIATED -> SUCCESS.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, id, providerPaymentID, signature string) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, markSucceededSQL, id, providerPaymentID, signature)
	if err != nil {
		return false, fmt.Errorf("marking payment %q succeeded: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

const markFailedSQL = `UPDATE payments
	SET status = 'FAILED', updated_at = now()
	WHERE id = $1 AND status = 'INITIATED'`

// MarkFailed transitions INITIATED -> FAILED.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, markFailedSQL, id)
	if err != nil {
		return false, fmt.Errorf("marking payment %q failed: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

const insertPaymentEventSQL = `INSERT INTO payment_events (id, payment_id, type, payload)
	VALUES ($1, $2, $3, $4)`

// AppendEvent records one payment state transition.
func (r *PaymentRepository) AppendEvent(ctx context.Context, e *payment.Event) error {
	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.db.q(ctx).Exec(ctx, insertPaymentEventSQL, e.ID, e.PaymentID, e.Type, payload)
	if err != nil {
		return fmt.Errorf("appending payment event for %q: %w", e.PaymentID, err)
	}
	return nil
}
