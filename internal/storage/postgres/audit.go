package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/audit"
)

var _ audit.Repository = (*AuditRepository)(nil)

// AuditRepository implements audit.Repository backed by PostgreSQL.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository returns an AuditRepository that uses the given DB.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const insertAuditLogSQL = `INSERT INTO audit_logs
	(id, actor_id, action, entity_type, entity_id, metadata)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Append writes one audit entry. Metadata is serialized to JSONB.
func (r *AuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling audit metadata: %w", err)
	}
	if e.Metadata == nil {
		meta = []byte("{}")
	}

	_, err = r.db.q(ctx).Exec(ctx, insertAuditLogSQL,
		e.ID, e.ActorID, e.Action, e.EntityType, e.EntityID, meta)
	if err != nil {
		return fmt.Errorf("appending audit log %q: %w", e.ID, err)
	}
	return nil
}
