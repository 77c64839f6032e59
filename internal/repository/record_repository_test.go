package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

var recordCols = []string{"id", "session_id", "full_name", "normalized_name", "id_number", "device_id", "fingerprint", "source", "risk_score", "flagged", "risk_signals", "submitted_at", "updated_at"}

func sampleRecord() *models.AttendanceRecord {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &models.AttendanceRecord{
		SessionID:      "s1",
		FullName:       "Ada  Obi",
		NormalizedName: "ada obi",
		IDNumber:       "20201234567",
		DeviceID:       "dev-1",
		Source:         models.RecordSourceSelf,
		SubmittedAt:    now,
	}
}

func TestRecordRepositoryListBySession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE session_id = $1 ORDER BY seq")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("r1", "s1", "Ada Obi", "ada obi", "20201234567", "dev-1", "", "SELF", 0, false, "{}", now, now).
			AddRow("r2", "s1", "Bola Ade", "bola ade", "20201234568", "__manual_entry__", "", "MANUAL_BY_ADMIN", 0, false, "{}", now, now))

	records, err := repo.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].ID)
	assert.True(t, records[1].ExemptFromDeviceRule())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListFlaggedPage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE session_id = $1 AND flagged = TRUE ORDER BY seq LIMIT 10 OFFSET 10")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("r11", "s1", "Kemi Ola", "kemi ola", "20201234577", "dev-9", "fp", "SELF", 55, true, "{shared_device,burst}", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_records WHERE session_id = $1 AND flagged = TRUE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	records, total, err := repo.List(context.Background(), models.RecordFilter{SessionID: "s1", FlaggedOnly: true, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, records, 1)
	assert.Equal(t, 55, records[0].RiskScore)
	assert.Equal(t, []string{"shared_device", "burst"}, []string(records[0].RiskSignals))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)
	record := sampleRecord()

	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "s1", "Ada  Obi", "ada obi", "20201234567", "dev-1", "", models.RecordSourceSelf, 0, false, "{}", record.SubmittedAt, record.SubmittedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryInsertStoresSignals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)
	record := sampleRecord()
	record.RiskScore = 55
	record.Flagged = true
	record.RiskSignals = pq.StringArray{"shared_fingerprint", "shared_device"}

	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "s1", "Ada  Obi", "ada obi", "20201234567", "dev-1", "", models.RecordSourceSelf, 55, true, "{shared_fingerprint,shared_device}", record.SubmittedAt, record.SubmittedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryFindByIDNumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE session_id = $1 AND id_number = $2")).
		WithArgs("s1", "20201234567").
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("r1", "s1", "Ada Obi", "ada obi", "20201234567", "dev-1", "", "SELF", 0, false, "{}", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE session_id = $1 AND id_number = $2")).
		WithArgs("s1", "99999999999").
		WillReturnRows(sqlmock.NewRows(recordCols))

	got, err := repo.FindByIDNumber(context.Background(), "s1", "20201234567")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	_, err = repo.FindByIDNumber(context.Background(), "s1", "99999999999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryInsertUniqueViolation(t *testing.T) {
	cases := []struct {
		constraint string
		code       string
	}{
		{constraintRecordIDNumber, appErrors.ErrDuplicateIDNumber.Code},
		{constraintRecordName, appErrors.ErrDuplicateName.Code},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()
			repo := NewRecordRepository(db)

			mock.ExpectExec("INSERT INTO attendance_records").
				WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tc.constraint})

			err := repo.Insert(context.Background(), sampleRecord())
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, tc.code))
			assert.True(t, appErrors.IsRejection(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordRepositoryInsertFailureIsNotRejection(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec("INSERT INTO attendance_records").WillReturnError(errors.New("connection reset"))

	err := repo.Insert(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.False(t, appErrors.IsRejection(err))
}

func TestRecordRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)
	record := sampleRecord()
	record.Source = models.RecordSourceEdited
	record.UpdatedAt = time.Now().UTC()

	mock.ExpectExec("UPDATE attendance_records").
		WithArgs("s1", "20201234500", record.FullName, record.NormalizedName, record.IDNumber, models.RecordSourceEdited, record.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE attendance_records").
		WithArgs("s1", "99999999999", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Update(context.Background(), "s1", "20201234500", record))
	assert.ErrorIs(t, repo.Update(context.Background(), "s1", "99999999999", record), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records WHERE session_id = $1 AND id_number = $2")).
		WithArgs("s1", "20201234567").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records")).
		WithArgs("s1", "20201234567").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "s1", "20201234567"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "s1", "20201234567"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
