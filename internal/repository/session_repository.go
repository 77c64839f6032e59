package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

const sessionColumns = "id, kind, label, status, created_at, ended_at"

// SessionRepository persists attendance sessions in PostgreSQL.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_sessions (id, kind, label, status, created_at, ended_at)
        VALUES (:id, :kind, :label, :status, :created_at, :ended_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID returns a session or ErrNotFound.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := "SELECT " + sessionColumns + " FROM attendance_sessions WHERE id = $1"
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// List returns sessions newest first, optionally filtered by status.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error) {
	query := "SELECT " + sessionColumns + " FROM attendance_sessions"
	args := []interface{}{}
	if filter.Status != nil {
		query += " WHERE status = $1"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY created_at DESC"

	sessions := []models.AttendanceSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// End marks an active session as ended. Ending an ended session is a no-op.
func (r *SessionRepository) End(ctx context.Context, id string, endedAt time.Time) error {
	const query = `UPDATE attendance_sessions SET status = $2, ended_at = COALESCE(ended_at, $3) WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, models.SessionStatusEnded, endedAt)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
