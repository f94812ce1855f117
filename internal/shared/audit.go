package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/odyssey-erp/fincore/internal/platform/db"
)

// AuditLockChanged is recorded whenever an accounting lock date moves.
const AuditLockChanged = "accounting_lock.set"

// AuditLog is one row of audit_logs. A zero At defers to the database clock.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends administrative changes to audit_logs.
type AuditLogger struct {
	db db.DBTX
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(conn db.DBTX) *AuditLogger {
	return &AuditLogger{db: conn}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return Validationf("audit log requires action, entity and entity id")
	}
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	var at any
	if !entry.At.IsZero() {
		at = entry.At.UTC()
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta, at)
	return err
}
