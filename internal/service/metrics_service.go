package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission outcomes used as metric labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// MetricsService owns a private Prometheus registry. A nil *MetricsService is
// valid and records nothing.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	admissions        *prometheus.CounterVec
	flagged           prometheus.Counter
	credentialsIssued *prometheus.CounterVec
	sessionEvents     *prometheus.CounterVec
	adminMutations    *prometheus.CounterVec
}

// NewMetricsService registers the HTTP and attendance collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_admissions_total",
			Help: "Attendance submissions by outcome and rejection reason",
		}, []string{"outcome", "reason"}),
		flagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_flagged_total",
			Help: "Accepted submissions flagged by the risk scorer",
		}),
		credentialsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_credentials_issued_total",
			Help: "Rotating credentials issued by kind",
		}, []string{"kind"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_session_events_total",
			Help: "Attendance session lifecycle events",
		}, []string{"event"}),
		adminMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_admin_mutations_total",
			Help: "Administrator record corrections by action",
		}, []string{"action"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.admissions, m.flagged,
		m.credentialsIssued, m.sessionEvents, m.adminMutations, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveAdmission counts one submission decision.
func (m *MetricsService) ObserveAdmission(outcome, reason string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome, reason).Inc()
}

// ObserveFlagged counts an accepted submission that was flagged.
func (m *MetricsService) ObserveFlagged() {
	if m == nil {
		return
	}
	m.flagged.Inc()
}

// ObserveCredentialIssued counts an issued credential.
func (m *MetricsService) ObserveCredentialIssued(kind string) {
	if m == nil {
		return
	}
	m.credentialsIssued.WithLabelValues(kind).Inc()
}

// ObserveSessionEvent counts session starts and ends.
func (m *MetricsService) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}

// ObserveAdminMutation counts administrator corrections.
func (m *MetricsService) ObserveAdminMutation(action string) {
	if m == nil {
		return
	}
	m.adminMutations.WithLabelValues(action).Inc()
}
