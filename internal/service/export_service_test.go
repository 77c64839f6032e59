package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

func TestExportServiceCSV(t *testing.T) {
	f := newAdmissionFixture(t, AdmissionConfig{})
	_, err := f.submit("Ada Obi", "20201234567", "dev-1")
	require.NoError(t, err)
	_, err = f.svc.AddManual(context.Background(), f.session.ID, "Bola Ade", "20201234568")
	require.NoError(t, err)

	svc := NewExportService(f.svc, nil, f.clock.Now)
	result, err := svc.Export(context.Background(), f.session.ID, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "attendance-"+f.session.ID))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	rows, err := csv.NewReader(bytes.NewReader(result.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Full Name", rows[0][1])
	assert.Equal(t, []string{"1", "Ada Obi", "20201234567", "SELF"}, rows[1][:4])
	assert.Equal(t, []string{"2", "Bola Ade", "20201234568", "MANUAL_BY_ADMIN"}, rows[2][:4])
}

func TestExportServicePDF(t *testing.T) {
	f := newAdmissionFixture(t, AdmissionConfig{})
	_, err := f.submit("Ada Obi", "20201234567", "dev-1")
	require.NoError(t, err)

	result, err := NewExportService(f.svc, nil, f.clock.Now).Export(context.Background(), f.session.ID, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Body, []byte("%PDF")))
}

func TestExportServiceErrors(t *testing.T) {
	f := newAdmissionFixture(t, AdmissionConfig{})
	svc := NewExportService(f.svc, nil, nil)

	_, err := svc.Export(context.Background(), f.session.ID, "xlsx")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Export(context.Background(), "missing", "csv")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSessionNotFound.Code))
}
