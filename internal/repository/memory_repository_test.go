package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	older := &models.AttendanceSession{Kind: models.SessionKindDaily, Status: models.SessionStatusActive, CreatedAt: base}
	newer := &models.AttendanceSession{Kind: models.SessionKindPerSubject, Status: models.SessionStatusActive, CreatedAt: base.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	all, err := repo.List(ctx, models.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)

	endedAt := base.Add(2 * time.Hour)
	require.NoError(t, repo.End(ctx, older.ID, endedAt))
	require.NoError(t, repo.End(ctx, older.ID, endedAt.Add(time.Hour)))
	found, err := repo.FindByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, found.Status)
	assert.Equal(t, endedAt, *found.EndedAt)

	status := models.SessionStatusActive
	active, err := repo.List(ctx, models.SessionFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, newer.ID, active[0].ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.End(ctx, "missing", endedAt), ErrNotFound)
}

func newMemRecord(id, name string) *models.AttendanceRecord {
	return &models.AttendanceRecord{
		SessionID:      "s1",
		FullName:       name,
		NormalizedName: models.NormalizeName(name),
		IDNumber:       id,
		DeviceID:       "dev-" + id,
		Source:         models.RecordSourceSelf,
		SubmittedAt:    time.Now().UTC(),
	}
}

func TestMemoryRecordRepositoryUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecordRepository()

	require.NoError(t, repo.Insert(ctx, newMemRecord("20201234567", "Ada Obi")))

	err := repo.Insert(ctx, newMemRecord("20201234567", "Someone Else"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateIDNumber.Code))

	err = repo.Insert(ctx, newMemRecord("20201234568", "  ADA   obi "))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateName.Code))

	other := newMemRecord("20201234567", "Ada Obi")
	other.SessionID = "s2"
	require.NoError(t, repo.Insert(ctx, other))

	records, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryRecordRepositoryUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecordRepository()
	require.NoError(t, repo.Insert(ctx, newMemRecord("20201234567", "Ada Obi")))
	require.NoError(t, repo.Insert(ctx, newMemRecord("20201234568", "Bola Ade")))

	clash := newMemRecord("20201234568", "Ada Obi")
	err := repo.Update(ctx, "s1", "20201234567", clash)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateIDNumber.Code))

	edit := newMemRecord("20201234569", "Ada Obi-Eze")
	edit.Source = models.RecordSourceEdited
	require.NoError(t, repo.Update(ctx, "s1", "20201234567", edit))
	assert.Equal(t, "dev-20201234567", edit.DeviceID)

	got, err := repo.FindByIDNumber(ctx, "s1", "20201234569")
	require.NoError(t, err)
	assert.Equal(t, models.RecordSourceEdited, got.Source)
	_, err = repo.FindByIDNumber(ctx, "s1", "20201234567")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Update(ctx, "s1", "00000000000", edit), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "s1", "20201234569"))
	assert.ErrorIs(t, repo.Delete(ctx, "s1", "20201234569"), ErrNotFound)

	records, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "20201234568", records[0].IDNumber)
}

func TestMemoryRecordRepositoryListPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecordRepository()
	ids := []string{"20200000001", "20200000002", "20200000003", "20200000004", "20200000005"}
	for i, id := range ids {
		rec := newMemRecord(id, "Student "+id)
		rec.Flagged = i%2 == 0
		require.NoError(t, repo.Insert(ctx, rec))
	}

	page, total, err := repo.List(ctx, models.RecordFilter{SessionID: "s1", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "20200000003", page[0].IDNumber)

	flagged, total, err := repo.List(ctx, models.RecordFilter{SessionID: "s1", FlaggedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, flagged, 3)

	empty, _, err := repo.List(ctx, models.RecordFilter{SessionID: "s1", Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryAuditRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository()
	s1, s2 := "s1", "s2"
	require.NoError(t, repo.Create(ctx, &models.AuditLog{Action: models.AuditActionSessionStart, SessionID: &s1}))
	require.NoError(t, repo.Create(ctx, &models.AuditLog{Action: models.AuditActionSessionStart, SessionID: &s2}))
	require.NoError(t, repo.Create(ctx, &models.AuditLog{Action: models.AuditActionSessionEnd, SessionID: &s1}))

	logs, err := repo.ListBySession(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionSessionEnd, logs[0].Action)
}
