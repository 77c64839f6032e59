package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

// MemorySessionRepository keeps sessions in process memory.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]models.AttendanceSession
}

// NewMemorySessionRepository constructs an empty MemorySessionRepository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]models.AttendanceSession)}
}

// Create stores a new session.
func (r *MemorySessionRepository) Create(_ context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID returns a copy of the session or ErrNotFound.
func (r *MemorySessionRepository) FindByID(_ context.Context, id string) (*models.AttendanceSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

// List returns sessions newest first.
func (r *MemorySessionRepository) List(_ context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error) {
	r.mu.RLock()
	out := make([]models.AttendanceSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// End marks the session ended, keeping the first end time.
func (r *MemorySessionRepository) End(_ context.Context, id string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = models.SessionStatusEnded
	if s.EndedAt == nil {
		s.EndedAt = &endedAt
	}
	r.sessions[id] = s
	return nil
}

// MemoryRecordRepository keeps records per session in insertion order and
// enforces the same uniqueness as the PostgreSQL indexes.
type MemoryRecordRepository struct {
	mu      sync.RWMutex
	records map[string][]models.AttendanceRecord
}

// NewMemoryRecordRepository constructs an empty MemoryRecordRepository.
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{records: make(map[string][]models.AttendanceRecord)}
}

// ListBySession returns a copy of the session's records in insertion order.
func (r *MemoryRecordRepository) ListBySession(_ context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.AttendanceRecord{}, r.records[sessionID]...), nil
}

// List returns one page of records plus the total matching count.
func (r *MemoryRecordRepository) List(_ context.Context, filter models.RecordFilter) ([]models.AttendanceRecord, int, error) {
	r.mu.RLock()
	matched := make([]models.AttendanceRecord, 0, len(r.records[filter.SessionID]))
	for _, rec := range r.records[filter.SessionID] {
		if filter.FlaggedOnly && !rec.Flagged {
			continue
		}
		matched = append(matched, rec)
	}
	r.mu.RUnlock()

	total := len(matched)
	page, size := normalizePaging(filter.Page, filter.PageSize)
	if size <= 0 {
		return matched, total, nil
	}
	start := (page - 1) * size
	if start >= total {
		return []models.AttendanceRecord{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// FindByIDNumber returns the record with the given id number.
func (r *MemoryRecordRepository) FindByIDNumber(_ context.Context, sessionID, idNumber string) (*models.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := indexOf(r.records[sessionID], idNumber); i >= 0 {
		rec := r.records[sessionID][i]
		return &rec, nil
	}
	return nil, ErrNotFound
}

// Insert appends a record.
func (r *MemoryRecordRepository) Insert(_ context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.SubmittedAt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.records[record.SessionID]
	if err := conflictWith(rows, *record, -1); err != nil {
		return err
	}
	r.records[record.SessionID] = append(rows, *record)
	return nil
}

// Update rewrites the record identified by oldIDNumber in place.
func (r *MemoryRecordRepository) Update(_ context.Context, sessionID, oldIDNumber string, record *models.AttendanceRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.records[sessionID]
	i := indexOf(rows, oldIDNumber)
	if i < 0 {
		return ErrNotFound
	}
	if err := conflictWith(rows, *record, i); err != nil {
		return err
	}
	current := rows[i]
	current.FullName = record.FullName
	current.NormalizedName = record.NormalizedName
	current.IDNumber = record.IDNumber
	current.Source = record.Source
	current.UpdatedAt = record.UpdatedAt
	rows[i] = current
	*record = current
	return nil
}

// Delete removes the record identified by idNumber.
func (r *MemoryRecordRepository) Delete(_ context.Context, sessionID, idNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.records[sessionID]
	i := indexOf(rows, idNumber)
	if i < 0 {
		return ErrNotFound
	}
	r.records[sessionID] = append(rows[:i:i], rows[i+1:]...)
	return nil
}

func indexOf(rows []models.AttendanceRecord, idNumber string) int {
	for i := range rows {
		if rows[i].IDNumber == idNumber {
			return i
		}
	}
	return -1
}

func conflictWith(rows []models.AttendanceRecord, candidate models.AttendanceRecord, skip int) error {
	for i := range rows {
		if i == skip {
			continue
		}
		if rows[i].IDNumber == candidate.IDNumber {
			return appErrors.Clone(appErrors.ErrDuplicateIDNumber, "")
		}
		if rows[i].NormalizedName == candidate.NormalizedName {
			return appErrors.Clone(appErrors.ErrDuplicateName, "")
		}
	}
	return nil
}

// MemoryAuditRepository keeps audit entries in memory.
type MemoryAuditRepository struct {
	mu   sync.RWMutex
	logs []models.AuditLog
}

// NewMemoryAuditRepository constructs an empty MemoryAuditRepository.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

// Create appends an audit entry.
func (r *MemoryAuditRepository) Create(_ context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

// ListBySession returns the newest entries for a session.
func (r *MemoryAuditRepository) ListBySession(_ context.Context, sessionID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.AuditLog{}
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.logs[i].SessionID != nil && *r.logs[i].SessionID == sessionID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}
