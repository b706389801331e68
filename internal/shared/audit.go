package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions.
const (
	AuditLogin        = "auth.login"
	AuditLoginFailed  = "auth.login_failed"
	AuditLogout       = "auth.logout"
	AuditRegister     = "auth.register"
	AuditSoftDelete   = "content.delete"
	AuditRestore      = "content.restore"
	AuditBusinessEdit = "business.change"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	// ActorID is zero when the actor is unknown, e.g. a failed login.
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var actor *int64
	if log.ActorID > 0 {
		actor = &log.ActorID
	}
	var at *time.Time
	if !log.At.IsZero() {
		stamp := log.At.UTC()
		at = &stamp
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, actor, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// DiscardAudit drops every entry. Used where no audit store is configured.
type DiscardAudit struct{}

// Record implements AuditRecorder.
func (DiscardAudit) Record(context.Context, AuditLog) error { return nil }
