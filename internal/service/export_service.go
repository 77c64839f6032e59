package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type sessionRecordSource interface {
	SessionRecords(ctx context.Context, sessionID string) (*models.AttendanceSession, []models.AttendanceRecord, error)
}

// ExportResult is a rendered export ready to be streamed.
type ExportResult struct {
	Body        []byte
	ContentType string
	Filename    string
}

// ExportService renders the records of a session as a downloadable file.
type ExportService struct {
	source    sessionRecordSource
	renderers map[string]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(source sessionRecordSource, logger *zap.Logger, now func() time.Time) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ExportService{
		source: source,
		renderers: map[string]export.Renderer{
			ExportFormatCSV: export.CSV{},
			ExportFormatPDF: export.PDF{},
		},
		logger: logger,
		now:    now,
	}
}

var recordColumns = []export.Column{
	{Key: "no", Title: "#", Width: 0.5},
	{Key: "full_name", Title: "Full Name", Width: 3},
	{Key: "id_number", Title: "ID Number", Width: 2},
	{Key: "source", Title: "Source", Width: 1.5},
	{Key: "submitted_at", Title: "Submitted At", Width: 2},
	{Key: "risk_score", Title: "Risk", Width: 0.7},
	{Key: "flagged", Title: "Flagged", Width: 0.8},
}

// Export renders every record of the session in the requested format.
func (s *ExportService) Export(ctx context.Context, sessionID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "unsupported export format", map[string]interface{}{"format": format})
	}

	session, records, err := s.source.SessionRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(s.table(session, records))
	if err != nil {
		s.logger.Error("render export", zap.String("session_id", sessionID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportResult{
		Body:        body,
		ContentType: renderer.ContentType(),
		Filename:    fmt.Sprintf("attendance-%s-%s.%s", session.ID, s.now().Format("20060102-150405"), renderer.Extension()),
	}, nil
}

func (s *ExportService) table(session *models.AttendanceSession, records []models.AttendanceRecord) export.Table {
	title := "Attendance"
	if session.Label != "" {
		title = "Attendance: " + session.Label
	}
	rows := make([]map[string]string, 0, len(records))
	for i, rec := range records {
		rows = append(rows, map[string]string{
			"no":           strconv.Itoa(i + 1),
			"full_name":    rec.FullName,
			"id_number":    rec.IDNumber,
			"source":       string(rec.Source),
			"submitted_at": rec.SubmittedAt.UTC().Format(time.RFC3339),
			"risk_score":   strconv.Itoa(rec.RiskScore),
			"flagged":      strconv.FormatBool(rec.Flagged),
		})
	}
	return export.Table{
		Title:    title,
		Subtitle: fmt.Sprintf("%s session %s, %s, %d records", session.Kind, session.ID, session.Status, len(records)),
		Columns:  recordColumns,
		Rows:     rows,
	}
}
