// Package audit provides the append-only log of privileged actions. Every
// admin override, cancellation, and approval is recorded here so the history
// of privileged state changes can always be reconstructed.
package audit

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Entry is one privileged action record. Entries are append-only and never
// mutated.
type Entry struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Repository persists audit entries.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
}

// Logger writes audit entries for privileged mutations.
type Logger struct {
	repo Repository
}

// NewLogger creates an audit Logger backed by the given repository.
func NewLogger(repo Repository) *Logger {
	return &Logger{repo: repo}
}

// Log appends a single audit entry. ActorID, Action, EntityType, and EntityID
// are required; Metadata is optional.
func (l *Logger) Log(ctx context.Context, e Entry) error {
	if e.ActorID == "" || e.Action == "" || e.EntityType == "" || e.EntityID == "" {
		return errors.New("audit entry missing required fields")
	}
	e.ID = uuid.New().String()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return l.repo.Append(ctx, &e)
}

// Audited runs fn and, only if it succeeds, appends the audit entry. Routing
// every privileged mutation through this wrapper guarantees no privileged path
// skips logging, and that no entry is written for a mutation that failed.
func (l *Logger) Audited(ctx context.Context, e Entry, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return l.Log(ctx, e)
}
