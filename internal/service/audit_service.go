package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/jobs"
)

const auditJobType = "audit.write"

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AuditLog, error)
}

// AuditService writes the administrator audit trail off the request path.
type AuditService struct {
	repo   auditRepository
	queue  *jobs.Queue
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService builds the service and its worker queue. Call Start before use.
func NewAuditService(repo auditRepository, logger *zap.Logger, cfg jobs.QueueConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	s := &AuditService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	s.queue = jobs.NewQueue("audit", s.persist, cfg)
	return s
}

// Start launches the audit workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending entries.
func (s *AuditService) Stop(ctx context.Context) error {
	return s.queue.Stop(ctx)
}

// Record queues an audit entry. Failures are logged and never returned.
func (s *AuditService) Record(entry models.AuditLog) {
	if s == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if len(entry.Payload) == 0 {
		entry.Payload = json.RawMessage(`{}`)
	}
	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry}); err != nil {
		s.logger.Warn("audit entry dropped", zap.String("action", string(entry.Action)), zap.Error(err))
	}
}

// ListBySession returns the newest audit entries of a session.
func (s *AuditService) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AuditLog, error) {
	logs, err := s.repo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit trail")
	}
	return logs, nil
}

func (s *AuditService) persist(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Create(ctx, &entry)
}

// auditRecorder is what mutating services need from AuditService.
type auditRecorder interface {
	Record(entry models.AuditLog)
}

func newAuditEntry(ctx context.Context, action models.AuditAction, sessionID, subject string, payload map[string]interface{}) models.AuditLog {
	entry := models.AuditLog{Actor: ActorFromContext(ctx), Action: action}
	if sessionID != "" {
		entry.SessionID = &sessionID
	}
	if subject != "" {
		entry.Subject = &subject
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			entry.Payload = raw
		}
	}
	return entry
}

type actorKey struct{}

// WithActor annotates ctx with the administrator performing an action.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting administrator or "system".
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}
