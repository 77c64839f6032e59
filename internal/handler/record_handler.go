package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-gate-api/internal/service"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/response"
)

const defaultAuditLimit = 50

// RecordHandler exposes the course rep's view and corrections of session records.
type RecordHandler struct {
	admission *service.AdmissionService
	exporter  *service.ExportService
	audit     *service.AuditService
}

// NewRecordHandler constructs a RecordHandler.
func NewRecordHandler(admission *service.AdmissionService, exporter *service.ExportService, audit *service.AuditService) *RecordHandler {
	return &RecordHandler{admission: admission, exporter: exporter, audit: audit}
}

// List godoc
// @Summary List session records
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param flagged query bool false "Only records flagged by the risk scorer"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/records [get]
func (h *RecordHandler) List(c *gin.Context) {
	records, pagination, err := h.admission.ListRecords(c.Request.Context(), service.RecordListRequest{
		SessionID:   c.Param("id"),
		FlaggedOnly: c.Query("flagged") == "true",
		Page:        queryInt(c, "page", 1),
		PageSize:    queryInt(c, "page_size", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// AddManual godoc
// @Summary Add a record on behalf of a student
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.ManualRecordRequest true "Record"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/records [post]
func (h *RecordHandler) AddManual(c *gin.Context) {
	var req service.ManualRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}
	record, err := h.admission.AddManual(c.Request.Context(), c.Param("id"), req.FullName, req.IDNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Edit godoc
// @Summary Correct a record
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param idNumber path string true "Current ID number"
// @Param payload body service.ManualRecordRequest true "Corrected values"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/records/{idNumber} [put]
func (h *RecordHandler) Edit(c *gin.Context) {
	var req service.ManualRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}
	record, err := h.admission.Edit(c.Request.Context(), c.Param("id"), c.Param("idNumber"), req.FullName, req.IDNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete a record
// @Tags Records
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param idNumber path string true "ID number"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/records/{idNumber} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.admission.Delete(c.Request.Context(), c.Param("id"), c.Param("idNumber")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export session records
// @Tags Records
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/records/export [get]
func (h *RecordHandler) Export(c *gin.Context) {
	result, err := h.exporter.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.ContentType, result.Filename, result.Body)
}

// Audit godoc
// @Summary Session audit trail
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/audit [get]
func (h *RecordHandler) Audit(c *gin.Context) {
	limit := queryInt(c, "limit", defaultAuditLimit)
	if limit <= 0 || limit > 500 {
		limit = defaultAuditLimit
	}
	logs, err := h.audit.ListBySession(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
