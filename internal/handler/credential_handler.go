package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/service"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/response"
)

const qrDefaultSize = 300

// CredentialHandler exposes the rotating credential display endpoints.
type CredentialHandler struct {
	service       *service.CredentialService
	publicBaseURL string
}

// NewCredentialHandler constructs a CredentialHandler. publicBaseURL prefixes
// the scan link encoded in QR codes.
func NewCredentialHandler(svc *service.CredentialService, publicBaseURL string) *CredentialHandler {
	return &CredentialHandler{service: svc, publicBaseURL: publicBaseURL}
}

// Issue godoc
// @Summary Issue a new credential
// @Tags Credentials
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/credentials [post]
func (h *CredentialHandler) Issue(c *gin.Context) {
	cred, err := h.service.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.view(cred, int(h.service.Lifetime()/time.Second)))
}

// Current godoc
// @Summary Current credential
// @Description Returns the newest credential, issuing a fresh one once it has expired.
// @Tags Credentials
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/credentials/current [get]
func (h *CredentialHandler) Current(c *gin.Context) {
	cred, remaining, err := h.service.CurrentOrRefresh(c.Request.Context(), c.Param("id"), 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.view(cred, remaining), nil)
}

// QR godoc
// @Summary Current credential as a QR code
// @Tags Credentials
// @Produce png
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param size query int false "Edge length in pixels"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/credentials/qr [get]
func (h *CredentialHandler) QR(c *gin.Context) {
	cred, remaining, err := h.service.CurrentOrRefresh(c.Request.Context(), c.Param("id"), 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	size := queryInt(c, "size", qrDefaultSize)
	if size < 64 || size > 1024 {
		size = qrDefaultSize
	}
	png, err := qrcode.Encode(h.scanURL(cred), qrcode.Medium, size)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Credential-Seconds-Remaining", strconv.Itoa(remaining))
	c.Data(http.StatusOK, "image/png", png)
}

func (h *CredentialHandler) view(cred *models.RotatingCredential, remaining int) models.CredentialView {
	return models.CredentialView{Credential: *cred, SecondsRemaining: remaining, ScanURL: h.scanURL(cred)}
}

func (h *CredentialHandler) scanURL(cred *models.RotatingCredential) string {
	q := url.Values{}
	q.Set("session", cred.SessionID)
	q.Set("credential", cred.Value)
	return h.publicBaseURL + "/attend?" + q.Encode()
}
