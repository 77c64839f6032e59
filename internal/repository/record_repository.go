package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

const recordColumns = "id, session_id, full_name, normalized_name, id_number, device_id, fingerprint, source, risk_score, flagged, risk_signals, submitted_at, updated_at"

// RecordRepository persists attendance records in PostgreSQL. Unique indexes
// on (session_id, id_number) and (session_id, normalized_name) back the
// admission duplicate checks.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// ListBySession returns every record of a session in insertion order.
func (r *RecordRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	query := "SELECT " + recordColumns + " FROM attendance_records WHERE session_id = $1 ORDER BY seq"
	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	return records, nil
}

// List returns one page of a session's records and the total matching count.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.AttendanceRecord, int, error) {
	conditions := []string{"session_id = $1"}
	args := []interface{}{filter.SessionID}
	if filter.FlaggedOnly {
		conditions = append(conditions, "flagged = TRUE")
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	query := "SELECT " + recordColumns + " FROM attendance_records" + where + " ORDER BY seq"
	page, size := normalizePaging(filter.Page, filter.PageSize)
	if size > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", size, (page-1)*size)
	}

	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance_records"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}
	return records, total, nil
}

// FindByIDNumber returns the record of a session with the given id number.
func (r *RecordRepository) FindByIDNumber(ctx context.Context, sessionID, idNumber string) (*models.AttendanceRecord, error) {
	query := "SELECT " + recordColumns + " FROM attendance_records WHERE session_id = $1 AND id_number = $2"
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, idNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return &record, nil
}

// Insert appends a record. Unique violations surface as duplicate rejections.
func (r *RecordRepository) Insert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.SubmittedAt
	}
	if record.RiskSignals == nil {
		record.RiskSignals = pq.StringArray{}
	}
	const query = `INSERT INTO attendance_records (id, session_id, full_name, normalized_name, id_number, device_id, fingerprint, source, risk_score, flagged, risk_signals, submitted_at, updated_at)
        VALUES (:id, :session_id, :full_name, :normalized_name, :id_number, :device_id, :fingerprint, :source, :risk_score, :flagged, :risk_signals, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if conflict := recordConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Update rewrites the record identified by (sessionID, oldIDNumber).
func (r *RecordRepository) Update(ctx context.Context, sessionID, oldIDNumber string, record *models.AttendanceRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE attendance_records
        SET full_name = $3, normalized_name = $4, id_number = $5, source = $6, updated_at = $7
        WHERE session_id = $1 AND id_number = $2`
	res, err := r.db.ExecContext(ctx, query, sessionID, oldIDNumber,
		record.FullName, record.NormalizedName, record.IDNumber, record.Source, record.UpdatedAt)
	if err != nil {
		if conflict := recordConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("update record: %w", err)
	}
	return requireAffected(res)
}

// Delete removes the record identified by (sessionID, idNumber).
func (r *RecordRepository) Delete(ctx context.Context, sessionID, idNumber string) error {
	const query = `DELETE FROM attendance_records WHERE session_id = $1 AND id_number = $2`
	res, err := r.db.ExecContext(ctx, query, sessionID, idNumber)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
