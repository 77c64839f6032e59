package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/geo"
)

type recordRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	FindByIDNumber(ctx context.Context, sessionID, idNumber string) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.AttendanceRecord, int, error)
	Insert(ctx context.Context, record *models.AttendanceRecord) error
	Update(ctx context.Context, sessionID, oldIDNumber string, record *models.AttendanceRecord) error
	Delete(ctx context.Context, sessionID, idNumber string) error
}

type credentialValidator interface {
	IsValid(ctx context.Context, sessionID, presented string) (bool, error)
}

var digitsPattern = regexp.MustCompile(`^[0-9]+$`)

// AdmissionConfig selects which optional checks run on student submissions.
type AdmissionConfig struct {
	RequireCredential bool
	RequireProximity  bool
	RiskScoring       bool
	IDNumberLength    int
	Venue             geo.Point
	RadiusMeters      float64
	Now               func() time.Time

	// LegacyRequireCredential gates the single-form /submit binding on a code.
	LegacyRequireCredential bool

	// Locks is shared with the session registry so ending a session waits
	// for in-flight submissions. Nil gives the service its own set.
	Locks *SessionLocks
}

// AdmissionChecks overrides the configured checks for one binding.
type AdmissionChecks struct {
	RequireCredential bool
	RequireProximity  bool
	DeviceRule        bool
}

// SubmitRequest is one student's attendance submission.
type SubmitRequest struct {
	SessionID   string     `json:"-"`
	FullName    string     `json:"full_name"`
	IDNumber    string     `json:"id_number"`
	DeviceID    string     `json:"device_id"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Credential  *string    `json:"credential,omitempty"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`

	Checks *AdmissionChecks `json:"-"`
}

// ManualRecordRequest is an administrator-entered row.
type ManualRecordRequest struct {
	FullName string `json:"full_name"`
	IDNumber string `json:"id_number"`
}

// RecordListRequest scopes a record listing.
type RecordListRequest struct {
	SessionID   string
	FlaggedOnly bool
	Page        int
	PageSize    int
}

// AdmissionService decides whether submissions are accepted and owns the
// administrator corrections on a session's records.
type AdmissionService struct {
	records     recordRepository
	sessions    sessionLookup
	credentials credentialValidator
	scorer      RiskScorer
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	audit       auditRecorder
	config      AdmissionConfig
	locks       *SessionLocks
}

// NewAdmissionService constructs the admission controller.
func NewAdmissionService(records recordRepository, sessions sessionLookup, credentials credentialValidator, scorer RiskScorer, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, audit auditRecorder, cfg AdmissionConfig) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if err := validate.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register digits validation: %v", err))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDNumberLength <= 0 {
		cfg.IDNumberLength = 11
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if scorer.FlagThreshold == 0 {
		scorer = NewRiskScorer()
	}
	if cfg.Locks == nil {
		cfg.Locks = NewSessionLocks()
	}
	return &AdmissionService{
		records:     records,
		sessions:    sessions,
		credentials: credentials,
		scorer:      scorer,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
		audit:       audit,
		config:      cfg,
		locks:       cfg.Locks,
	}
}

// Config returns the active admission configuration.
func (s *AdmissionService) Config() AdmissionConfig {
	return s.config
}

// Submit runs the admission checks in order and stores the record on success.
// The first failing check determines the rejection.
func (s *AdmissionService) Submit(ctx context.Context, req SubmitRequest) (*models.AttendanceRecord, error) {
	record, err := s.submit(ctx, req)
	switch {
	case err == nil:
		s.metrics.ObserveAdmission(OutcomeAccepted, "")
		if record.Flagged {
			s.metrics.ObserveFlagged()
		}
		s.logger.Info("attendance accepted",
			zap.String("session_id", record.SessionID),
			zap.String("id_number", record.IDNumber),
			zap.Int("risk_score", record.RiskScore),
			zap.Bool("flagged", record.Flagged))
	case appErrors.IsRejection(err):
		code := appErrors.FromError(err).Code
		s.metrics.ObserveAdmission(OutcomeRejected, code)
		s.logger.Info("attendance rejected", zap.String("session_id", req.SessionID), zap.String("reason", code))
	default:
		s.metrics.ObserveAdmission(OutcomeError, "")
		s.logger.Error("attendance submission failed", zap.String("session_id", req.SessionID), zap.Error(err))
	}
	return record, err
}

func (s *AdmissionService) submit(ctx context.Context, req SubmitRequest) (*models.AttendanceRecord, error) {
	session, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, appErrors.Clone(appErrors.ErrSessionClosed, "")
	}
	checks := s.checksFor(req)

	if checks.RequireCredential {
		if err := s.checkCredential(ctx, req); err != nil {
			return nil, err
		}
	}

	if checks.RequireProximity {
		if err := s.checkProximity(req.Coordinates); err != nil {
			return nil, err
		}
	}

	fullName, idNumber, err := s.validateFields(req.FullName, req.IDNumber)
	if err != nil {
		return nil, err
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if err := s.validator.Var(deviceID, "required,max=256"); err != nil {
		return nil, invalidInput("device_id", "device identifier is required", err)
	}

	candidate := models.AttendanceRecord{
		SessionID:      req.SessionID,
		FullName:       fullName,
		NormalizedName: models.NormalizeName(fullName),
		IDNumber:       idNumber,
		DeviceID:       deviceID,
		Fingerprint:    strings.TrimSpace(req.Fingerprint),
		Source:         models.RecordSourceSelf,
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	// End takes the same lock, so this status is stable until Insert returns.
	session, err = s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, appErrors.Clone(appErrors.ErrSessionClosed, "")
	}

	prior, err := s.records.ListBySession(ctx, req.SessionID)
	if err != nil {
		return nil, storeFailure(err, "failed to load session records")
	}
	if err := duplicateOf(prior, candidate, -1, checks.DeviceRule); err != nil {
		return nil, err
	}

	now := s.config.Now()
	candidate.SubmittedAt = now
	candidate.UpdatedAt = now
	if s.config.RiskScoring {
		assessment := s.scorer.Score(prior, candidate, now)
		candidate.RiskScore = assessment.Score
		candidate.Flagged = assessment.Flagged
		candidate.RiskSignals = assessment.Signals
	}

	if err := s.records.Insert(ctx, &candidate); err != nil {
		if appErrors.IsRejection(err) {
			return nil, err
		}
		return nil, storeFailure(err, "failed to store attendance record")
	}
	return &candidate, nil
}

// checksFor resolves the checks for req. The device rule only runs when risk
// scoring is off, whatever the binding asks for.
func (s *AdmissionService) checksFor(req SubmitRequest) AdmissionChecks {
	if req.Checks == nil {
		return AdmissionChecks{
			RequireCredential: s.config.RequireCredential,
			RequireProximity:  s.config.RequireProximity,
			DeviceRule:        !s.config.RiskScoring,
		}
	}
	checks := *req.Checks
	checks.DeviceRule = checks.DeviceRule && !s.config.RiskScoring
	return checks
}

func (s *AdmissionService) checkCredential(ctx context.Context, req SubmitRequest) error {
	if req.Credential == nil || strings.TrimSpace(*req.Credential) == "" {
		return appErrors.Clone(appErrors.ErrCredentialInvalid, "an attendance code is required")
	}
	ok, err := s.credentials.IsValid(ctx, req.SessionID, *req.Credential)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrCredentialInvalid, "")
	}
	return nil
}

func (s *AdmissionService) checkProximity(coords *geo.Point) error {
	if coords == nil {
		return invalidInput("coordinates", "location is required", nil)
	}
	if err := coords.Validate(); err != nil {
		return invalidInput("coordinates", "location is invalid", err)
	}
	distance := geo.Distance(*coords, s.config.Venue)
	if distance > s.config.RadiusMeters {
		return appErrors.WithDetails(appErrors.ErrOutOfRange, "", map[string]interface{}{
			"distance_meters": distance,
			"radius_meters":   s.config.RadiusMeters,
		})
	}
	return nil
}

// validateFields trims the name and id number and checks their shape.
func (s *AdmissionService) validateFields(fullName, idNumber string) (string, string, error) {
	fullName = strings.Join(strings.Fields(fullName), " ")
	if err := s.validator.Var(fullName, "required,max=200"); err != nil {
		return "", "", invalidInput("full_name", "full name is required", err)
	}
	idNumber = models.NormalizeIDNumber(idNumber)
	rule := fmt.Sprintf("required,len=%d,digits", s.config.IDNumberLength)
	if err := s.validator.Var(idNumber, rule); err != nil {
		return "", "", invalidInput("id_number", fmt.Sprintf("id number must be exactly %d digits", s.config.IDNumberLength), err)
	}
	return fullName, idNumber, nil
}

// AddManual inserts an administrator-entered row. Credential, proximity and
// device checks do not apply; the session may already be ended.
func (s *AdmissionService) AddManual(ctx context.Context, sessionID, fullName, idNumber string) (*models.AttendanceRecord, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	fullName, idNumber, err := s.validateFields(fullName, idNumber)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	existing, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storeFailure(err, "failed to load session records")
	}
	now := s.config.Now()
	record := models.AttendanceRecord{
		SessionID:      sessionID,
		FullName:       fullName,
		NormalizedName: models.NormalizeName(fullName),
		IDNumber:       idNumber,
		DeviceID:       models.ManualDeviceSentinel,
		Source:         models.RecordSourceManual,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
	if err := duplicateOf(existing, record, -1, false); err != nil {
		return nil, err
	}
	if err := s.records.Insert(ctx, &record); err != nil {
		if appErrors.IsRejection(err) {
			return nil, err
		}
		return nil, storeFailure(err, "failed to store attendance record")
	}

	s.metrics.ObserveAdminMutation("add")
	s.record(newAuditEntry(ctx, models.AuditActionRecordAdd, sessionID, idNumber, map[string]interface{}{"full_name": fullName}))
	return &record, nil
}

// Edit replaces the name and id number of the row identified by oldIDNumber,
// re-checking uniqueness against every other row.
func (s *AdmissionService) Edit(ctx context.Context, sessionID, oldIDNumber, newFullName, newIDNumber string) (*models.AttendanceRecord, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	fullName, idNumber, err := s.validateFields(newFullName, newIDNumber)
	if err != nil {
		return nil, err
	}
	oldIDNumber = models.NormalizeIDNumber(oldIDNumber)

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	current, err := s.records.FindByIDNumber(ctx, sessionID, oldIDNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrRecordNotFound, "")
		}
		return nil, storeFailure(err, "failed to load attendance record")
	}
	existing, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storeFailure(err, "failed to load session records")
	}
	index := -1
	for i := range existing {
		if existing[i].ID == current.ID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, appErrors.Clone(appErrors.ErrRecordNotFound, "")
	}

	updated := *current
	updated.FullName = fullName
	updated.NormalizedName = models.NormalizeName(fullName)
	updated.IDNumber = idNumber
	updated.Source = models.RecordSourceEdited
	updated.UpdatedAt = s.config.Now()
	if err := duplicateOf(existing, updated, index, false); err != nil {
		return nil, err
	}

	if err := s.records.Update(ctx, sessionID, oldIDNumber, &updated); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, appErrors.Clone(appErrors.ErrRecordNotFound, "")
		case appErrors.IsRejection(err):
			return nil, err
		}
		return nil, storeFailure(err, "failed to update attendance record")
	}

	s.metrics.ObserveAdminMutation("edit")
	s.record(newAuditEntry(ctx, models.AuditActionRecordEdit, sessionID, oldIDNumber, map[string]interface{}{
		"full_name": fullName,
		"id_number": idNumber,
	}))
	return &updated, nil
}

// Delete removes the row identified by idNumber.
func (s *AdmissionService) Delete(ctx context.Context, sessionID, idNumber string) error {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	idNumber = models.NormalizeIDNumber(idNumber)

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.records.Delete(ctx, sessionID, idNumber); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrRecordNotFound, "")
		}
		return storeFailure(err, "failed to delete attendance record")
	}

	s.metrics.ObserveAdminMutation("delete")
	s.record(newAuditEntry(ctx, models.AuditActionRecordDelete, sessionID, idNumber, nil))
	return nil
}

// ListRecords returns one page of a session's records in insertion order.
func (s *AdmissionService) ListRecords(ctx context.Context, req RecordListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if _, err := s.sessions.Get(ctx, req.SessionID); err != nil {
		return nil, nil, err
	}
	if req.Page < 1 {
		req.Page = 1
	}

	unlock := s.locks.RLock(req.SessionID)
	defer unlock()

	records, total, err := s.records.List(ctx, models.RecordFilter{
		SessionID:   req.SessionID,
		FlaggedOnly: req.FlaggedOnly,
		Page:        req.Page,
		PageSize:    req.PageSize,
	})
	if err != nil {
		return nil, nil, storeFailure(err, "failed to list attendance records")
	}
	size := req.PageSize
	if size <= 0 {
		size = total
	}
	return records, &models.Pagination{Page: req.Page, PageSize: size, TotalCount: total}, nil
}

// SessionRecords returns a session and a consistent snapshot of all its records.
func (s *AdmissionService) SessionRecords(ctx context.Context, sessionID string) (*models.AttendanceSession, []models.AttendanceRecord, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.locks.RLock(sessionID)
	defer unlock()

	records, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, storeFailure(err, "failed to load session records")
	}
	return session, records, nil
}

func (s *AdmissionService) record(entry models.AuditLog) {
	if s.audit != nil {
		s.audit.Record(entry)
	}
}

// duplicateOf checks candidate against existing rows, ignoring index skip.
// The id number collision is reported first, then device, then name.
func duplicateOf(existing []models.AttendanceRecord, candidate models.AttendanceRecord, skip int, checkDevice bool) error {
	for i := range existing {
		if i != skip && existing[i].IDNumber == candidate.IDNumber {
			return appErrors.Clone(appErrors.ErrDuplicateIDNumber, "")
		}
	}
	if checkDevice {
		for i := range existing {
			if i == skip || existing[i].ExemptFromDeviceRule() {
				continue
			}
			if existing[i].DeviceID == candidate.DeviceID {
				return appErrors.Clone(appErrors.ErrDuplicateDevice, "")
			}
		}
	}
	for i := range existing {
		if i != skip && existing[i].NormalizedName == candidate.NormalizedName {
			return appErrors.Clone(appErrors.ErrDuplicateName, "")
		}
	}
	return nil
}

func invalidInput(field, message string, cause error) error {
	err := appErrors.WithDetails(appErrors.ErrInvalidInput, message, map[string]interface{}{"field": field})
	err.Err = cause
	return err
}

func storeFailure(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
