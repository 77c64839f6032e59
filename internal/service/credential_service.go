package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/signer"
)

type credentialRepository interface {
	Save(ctx context.Context, cred models.RotatingCredential, retention time.Duration) error
	ListSince(ctx context.Context, sessionID string, since time.Time) ([]models.RotatingCredential, error)
	Latest(ctx context.Context, sessionID string) (*models.RotatingCredential, error)
}

type sessionLookup interface {
	Get(ctx context.Context, id string) (*models.AttendanceSession, error)
}

// CredentialConfig configures rotating credential issuance.
type CredentialConfig struct {
	Kind             models.CredentialKind
	CodeDigits       int
	Lifetime         time.Duration
	HistoryRetention time.Duration
	Signer           *signer.TokenSigner
	Now              func() time.Time
}

// CredentialService issues and validates the rotating code shown in the room.
type CredentialService struct {
	repo     credentialRepository
	sessions sessionLookup
	logger   *zap.Logger
	metrics  *MetricsService
	audit    auditRecorder
	config   CredentialConfig
	locks    *SessionLocks
}

// NewCredentialService constructs the credential issuer.
func NewCredentialService(repo credentialRepository, sessions sessionLookup, logger *zap.Logger, metrics *MetricsService, audit auditRecorder, cfg CredentialConfig) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Kind == "" {
		cfg.Kind = models.CredentialKindCode
	}
	if cfg.CodeDigits <= 0 || cfg.CodeDigits > 18 {
		cfg.CodeDigits = 4
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 15 * time.Second
	}
	if cfg.HistoryRetention < cfg.Lifetime {
		cfg.HistoryRetention = 40 * cfg.Lifetime
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &CredentialService{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
		metrics:  metrics,
		audit:    audit,
		config:   cfg,
		locks:    NewSessionLocks(),
	}
}

// Lifetime returns the configured validity window.
func (s *CredentialService) Lifetime() time.Duration {
	return s.config.Lifetime
}

// Issue mints and stores a fresh credential for an active session.
func (s *CredentialService) Issue(ctx context.Context, sessionID string) (*models.RotatingCredential, error) {
	if err := s.requireActive(ctx, sessionID); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	cred, err := s.issueLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.record(newAuditEntry(ctx, models.AuditActionCredentialIssue, sessionID, "", map[string]interface{}{"kind": cred.Kind}))
	return cred, nil
}

// CurrentOrRefresh returns the newest credential while it is younger than
// lifetime, otherwise issues a new one. secondsRemaining is rounded up.
func (s *CredentialService) CurrentOrRefresh(ctx context.Context, sessionID string, lifetime time.Duration) (*models.RotatingCredential, int, error) {
	if lifetime <= 0 {
		lifetime = s.config.Lifetime
	}
	if err := s.requireActive(ctx, sessionID); err != nil {
		return nil, 0, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	now := s.config.Now()
	latest, err := s.repo.Latest(ctx, sessionID)
	switch {
	case err == nil && latest.Age(now) < lifetime:
		return latest, secondsCeil(lifetime - latest.Age(now)), nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		s.logger.Error("load latest credential failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credential")
	}

	cred, err := s.issueLocked(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	return cred, secondsCeil(lifetime), nil
}

// IsValid reports whether presented matches any stored credential of the
// session that is still within its lifetime. Errors are store failures only.
func (s *CredentialService) IsValid(ctx context.Context, sessionID, presented string) (bool, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return false, nil
	}
	if s.config.Kind == models.CredentialKindToken && s.config.Signer != nil {
		if err := s.config.Signer.Verify(sessionID, presented); err != nil {
			return false, nil
		}
	}

	now := s.config.Now()
	candidates, err := s.repo.ListSince(ctx, sessionID, now.Add(-s.config.Lifetime))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credentials")
	}

	valid := false
	for _, cred := range candidates {
		if !cred.FreshAt(now, s.config.Lifetime) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(cred.Value), []byte(presented)) == 1 {
			valid = true
		}
	}
	return valid, nil
}

func (s *CredentialService) issueLocked(ctx context.Context, sessionID string) (*models.RotatingCredential, error) {
	value, err := s.generate(sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credential")
	}
	cred := models.RotatingCredential{
		SessionID: sessionID,
		Value:     value,
		Kind:      s.config.Kind,
		IssuedAt:  s.config.Now(),
	}
	if err := s.repo.Save(ctx, cred, s.config.HistoryRetention); err != nil {
		s.logger.Error("store credential failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store credential")
	}
	s.metrics.ObserveCredentialIssued(string(cred.Kind))
	s.logger.Debug("credential issued", zap.String("session_id", sessionID), zap.String("kind", string(cred.Kind)))
	return &cred, nil
}

func (s *CredentialService) generate(sessionID string) (string, error) {
	if s.config.Kind == models.CredentialKindToken {
		if s.config.Signer == nil {
			return "", fmt.Errorf("token credentials need a signer")
		}
		return s.config.Signer.Generate(sessionID)
	}
	return randomCode(s.config.CodeDigits)
}

func (s *CredentialService) requireActive(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.Active() {
		return appErrors.Clone(appErrors.ErrSessionClosed, "")
	}
	return nil
}

func (s *CredentialService) record(entry models.AuditLog) {
	if s.audit != nil {
		s.audit.Record(entry)
	}
}

// randomCode returns a uniformly random numeric code, zero-padded to digits.
func randomCode(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
