package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.AttendanceSession) error
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error)
	End(ctx context.Context, id string, endedAt time.Time) error
}

// StartSessionRequest holds the payload for opening an attendance session.
type StartSessionRequest struct {
	Kind  models.SessionKind `json:"kind" validate:"required,oneof=DAILY PER_SUBJECT"`
	Label string             `json:"label" validate:"max=120"`
}

// SessionConfig configures the session registry.
type SessionConfig struct {
	SingleActive bool
	Now          func() time.Time

	// Locks must be the set the admission service uses for End to wait
	// on in-flight submissions.
	Locks *SessionLocks
}

// SessionService is the session registry: it opens, closes and looks up sessions.
type SessionService struct {
	repo      sessionRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	audit     auditRecorder
	config    SessionConfig

	mu sync.Mutex
}

// NewSessionService constructs the session service.
func NewSessionService(repo sessionRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, audit auditRecorder, cfg SessionConfig) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Locks == nil {
		cfg.Locks = NewSessionLocks()
	}
	return &SessionService{repo: repo, validator: validate, logger: logger, metrics: metrics, audit: audit, config: cfg}
}

// Start opens a new ACTIVE session.
func (s *SessionService) Start(ctx context.Context, req StartSessionRequest) (*models.AttendanceSession, error) {
	req.Kind = models.SessionKind(strings.ToUpper(strings.TrimSpace(string(req.Kind))))
	req.Label = strings.TrimSpace(req.Label)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.SingleActive {
		active, err := s.listActive(ctx)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			return nil, appErrors.WithDetails(appErrors.ErrSessionAlreadyActive, "", map[string]interface{}{"active_session_id": active[0].ID})
		}
	}

	session := &models.AttendanceSession{
		Kind:      req.Kind,
		Label:     req.Label,
		Status:    models.SessionStatusActive,
		CreatedAt: s.config.Now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start session")
	}

	s.logger.Info("attendance session started", zap.String("session_id", session.ID), zap.String("kind", string(session.Kind)))
	s.metrics.ObserveSessionEvent("start")
	s.record(newAuditEntry(ctx, models.AuditActionSessionStart, session.ID, "", map[string]interface{}{"kind": session.Kind, "label": session.Label}))
	return session, nil
}

// End closes a session. Ending an already ended session returns it unchanged.
func (s *SessionService) End(ctx context.Context, id string) (*models.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock := s.config.Locks.Lock(id)
	defer unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return session, nil
	}

	endedAt := s.config.Now()
	if err := s.repo.End(ctx, id, endedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "")
		}
		s.logger.Error("end session failed", zap.String("session_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end session")
	}
	session.Status = models.SessionStatusEnded
	session.EndedAt = &endedAt

	s.logger.Info("attendance session ended", zap.String("session_id", id))
	s.metrics.ObserveSessionEvent("end")
	s.record(newAuditEntry(ctx, models.AuditActionSessionEnd, id, "", nil))
	return session, nil
}

// Get returns a session or SESSION_NOT_FOUND.
func (s *SessionService) Get(ctx context.Context, id string) (*models.AttendanceSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions newest first.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error) {
	sessions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// ListActive returns the sessions currently accepting submissions.
func (s *SessionService) ListActive(ctx context.Context) ([]models.AttendanceSession, error) {
	return s.listActive(ctx)
}

// CurrentActive returns the newest active session, for clients that do not
// name a session explicitly.
func (s *SessionService) CurrentActive(ctx context.Context) (*models.AttendanceSession, error) {
	active, err := s.listActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "no attendance session is active")
	}
	return &active[0], nil
}

func (s *SessionService) listActive(ctx context.Context) ([]models.AttendanceSession, error) {
	status := models.SessionStatusActive
	return s.List(ctx, models.SessionFilter{Status: &status})
}

func (s *SessionService) record(entry models.AuditLog) {
	if s.audit != nil {
		s.audit.Record(entry)
	}
}
