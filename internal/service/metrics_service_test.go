package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveAdmission(OutcomeAccepted, "")
	m.ObserveAdmission(OutcomeRejected, "DUPLICATE_DEVICE")
	m.ObserveAdmission(OutcomeRejected, "DUPLICATE_DEVICE")
	m.ObserveFlagged()
	m.ObserveCredentialIssued("CODE")
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/sessions/:id/attendance", http.StatusCreated, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissions.WithLabelValues(OutcomeRejected, "DUPLICATE_DEVICE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues(OutcomeAccepted, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flagged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.credentialsIssued.WithLabelValues("CODE")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attendance_admissions_total")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveAdmission(OutcomeAccepted, "")
		m.ObserveFlagged()
		m.ObserveCredentialIssued("CODE")
		m.ObserveSessionEvent("start")
		m.ObserveAdminMutation("edit")
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
