package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/service"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/geo"
	"github.com/noah-isme/attendance-gate-api/pkg/response"
)

// AttendanceHandler exposes the public student submission endpoints.
type AttendanceHandler struct {
	admission *service.AdmissionService
	sessions  *service.SessionService
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(admission *service.AdmissionService, sessions *service.SessionService) *AttendanceHandler {
	return &AttendanceHandler{admission: admission, sessions: sessions}
}

// SubmitPayload is the body of a student submission.
type SubmitPayload struct {
	FullName    string     `json:"full_name"`
	IDNumber    string     `json:"id_number"`
	DeviceID    string     `json:"device_id"`
	Fingerprint string     `json:"fingerprint"`
	Credential  *string    `json:"credential"`
	Coordinates *geo.Point `json:"coordinates"`
}

// Submit godoc
// @Summary Submit attendance
// @Description Admission-checked student submission. The device ID may also be sent in the X-Device-ID header.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body SubmitPayload true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/attendance [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var payload SubmitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	record, err := h.admission.Submit(c.Request.Context(), service.SubmitRequest{
		SessionID:   c.Param("id"),
		FullName:    payload.FullName,
		IDNumber:    payload.IDNumber,
		DeviceID:    deviceID(c, payload.DeviceID),
		Fingerprint: fingerprint(c, payload.Fingerprint),
		Credential:  payload.Credential,
		Coordinates: payload.Coordinates,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// LegacySubmitPayload is the original single-form body.
type LegacySubmitPayload struct {
	FullName   string   `json:"full_name"`
	MatricNo   string   `json:"matric_no"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Credential *string  `json:"credential,omitempty"`
}

type legacyResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// LegacySubmit godoc
// @Summary Submit attendance (legacy form)
// @Description Submits against the single active session. Proximity is always checked; the attendance code only when ADMISSION_LEGACY_REQUIRE_CREDENTIAL is set. The device rule applies only when X-Device-ID is sent.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body LegacySubmitPayload true "Submission"
// @Success 200 {object} legacyResult
// @Failure 400 {object} legacyResult
// @Failure 403 {object} legacyResult
// @Failure 404 {object} legacyResult
// @Failure 409 {object} legacyResult
// @Router /submit [post]
func (h *AttendanceHandler) LegacySubmit(c *gin.Context) {
	var payload LegacySubmitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		legacyError(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, http.StatusBadRequest, "Missing fields"))
		return
	}

	session, err := h.sessions.CurrentActive(c.Request.Context())
	if err != nil {
		legacyError(c, err)
		return
	}

	checks := &service.AdmissionChecks{
		RequireCredential: h.admission.Config().LegacyRequireCredential,
		RequireProximity:  true,
		DeviceRule:        true,
	}
	device := deviceID(c, "")
	if device == "" {
		// Classmates often share one NAT address, so no device is derived
		// from the connection.
		device = models.AnonymousDevicePrefix + uuid.NewString()
		checks.DeviceRule = false
	}
	req := service.SubmitRequest{
		SessionID:   session.ID,
		FullName:    payload.FullName,
		IDNumber:    payload.MatricNo,
		DeviceID:    device,
		Fingerprint: fingerprint(c, ""),
		Credential:  payload.Credential,
		Checks:      checks,
	}
	if payload.Latitude != nil && payload.Longitude != nil {
		req.Coordinates = &geo.Point{Latitude: *payload.Latitude, Longitude: *payload.Longitude}
	}

	if _, err := h.admission.Submit(c.Request.Context(), req); err != nil {
		legacyError(c, err)
		return
	}
	c.JSON(http.StatusOK, legacyResult{Status: "success", Message: "Attendance recorded"})
}

func legacyError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, legacyResult{Status: "error", Message: appErr.Message, Code: appErr.Code})
}

// ProximityPayload is a coordinate to test against the venue.
type ProximityPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ProximityResult reports the distance to the venue.
type ProximityResult struct {
	DistanceMeters float64 `json:"distance_meters"`
	RadiusMeters   float64 `json:"radius_meters"`
	Within         bool    `json:"within"`
}

// ProximityCheck godoc
// @Summary Check venue proximity
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body ProximityPayload true "Coordinate"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /proximity/check [post]
func (h *AttendanceHandler) ProximityCheck(c *gin.Context) {
	var payload ProximityPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Latitude == nil || payload.Longitude == nil {
		response.Error(c, appErrors.WithDetails(appErrors.ErrInvalidInput, "latitude and longitude are required", map[string]interface{}{"field": "coordinates"}))
		return
	}
	point := geo.Point{Latitude: *payload.Latitude, Longitude: *payload.Longitude}
	if err := point.Validate(); err != nil {
		response.Error(c, appErrors.WithDetails(appErrors.ErrInvalidInput, strings.TrimSpace(err.Error()), map[string]interface{}{"field": "coordinates"}))
		return
	}

	cfg := h.admission.Config()
	distance := geo.Distance(point, cfg.Venue)
	response.JSON(c, http.StatusOK, ProximityResult{
		DistanceMeters: distance,
		RadiusMeters:   cfg.RadiusMeters,
		Within:         distance <= cfg.RadiusMeters,
	}, nil)
}
