package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

// AuditRepository stores audit trail entries.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	const query = `INSERT INTO audit_logs (id, actor, action, session_id, subject, payload, created_at)
        VALUES (:id, :actor, :action, :session_id, :subject, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListBySession returns the newest audit entries for a session.
func (r *AuditRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, actor, action, session_id, subject, COALESCE(payload, '{}'::jsonb) AS payload, created_at
        FROM audit_logs WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`
	logs := []models.AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
