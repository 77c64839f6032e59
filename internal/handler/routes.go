package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-gate-api/internal/middleware"
	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/service"
)

// Handlers groups the API handlers mounted by RegisterRoutes.
type Handlers struct {
	Auth       *AuthHandler
	Attendance *AttendanceHandler
	Sessions   *SessionHandler
	Credential *CredentialHandler
	Records    *RecordHandler
}

// RegisterRoutes mounts the public and course-rep routes on api.
// The limiter guards the unauthenticated write endpoints.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth *service.AuthService, limiter *middleware.TokenBucket) {
	limited := limiter.Middleware()

	api.POST("/auth/login", limited, h.Auth.Login)
	api.GET("/sessions/active", h.Sessions.Active)
	api.POST("/sessions/:id/attendance", limited, h.Attendance.Submit)
	api.POST("/submit", limited, h.Attendance.LegacySubmit)
	api.POST("/proximity/check", limited, h.Attendance.ProximityCheck)

	admin := api.Group("")
	admin.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleCourseRep))

	admin.POST("/sessions", h.Sessions.Start)
	admin.GET("/sessions", h.Sessions.List)
	admin.GET("/sessions/:id", h.Sessions.Get)
	admin.POST("/sessions/:id/end", h.Sessions.End)

	admin.POST("/sessions/:id/credentials", h.Credential.Issue)
	admin.GET("/sessions/:id/credentials/current", h.Credential.Current)
	admin.GET("/sessions/:id/credentials/qr", h.Credential.QR)

	admin.GET("/sessions/:id/records", h.Records.List)
	admin.POST("/sessions/:id/records", h.Records.AddManual)
	admin.GET("/sessions/:id/records/export", h.Records.Export)
	admin.PUT("/sessions/:id/records/:idNumber", h.Records.Edit)
	admin.DELETE("/sessions/:id/records/:idNumber", h.Records.Delete)
	admin.GET("/sessions/:id/audit", h.Records.Audit)
}

// RegisterOps mounts health, readiness and metrics endpoints.
func RegisterOps(r gin.IRoutes, h *MetricsHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
}
