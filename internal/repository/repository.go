package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

// ErrNotFound is returned when a lookup, update or delete matched no row.
var ErrNotFound = errors.New("repository: not found")

const (
	uniqueViolation = "23505"

	constraintRecordIDNumber = "attendance_records_session_id_number_key"
	constraintRecordName     = "attendance_records_session_name_key"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the attendance tables when they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// recordConflict maps a unique violation on attendance_records to its
// duplicate rejection. It returns nil for any other error.
func recordConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case constraintRecordName:
		return appErrors.Clone(appErrors.ErrDuplicateName, "")
	case constraintRecordIDNumber:
		return appErrors.Clone(appErrors.ErrDuplicateIDNumber, "")
	default:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, appErrors.ErrConflict.Message)
	}
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size > 500 {
		size = 500
	}
	return page, size
}
