package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-gate-api/api/swagger"
	"github.com/noah-isme/attendance-gate-api/internal/handler"
	"github.com/noah-isme/attendance-gate-api/internal/middleware"
	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/repository"
	"github.com/noah-isme/attendance-gate-api/internal/service"
	"github.com/noah-isme/attendance-gate-api/pkg/cache"
	"github.com/noah-isme/attendance-gate-api/pkg/config"
	"github.com/noah-isme/attendance-gate-api/pkg/database"
	"github.com/noah-isme/attendance-gate-api/pkg/geo"
	"github.com/noah-isme/attendance-gate-api/pkg/jobs"
	"github.com/noah-isme/attendance-gate-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-gate-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-gate-api/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-gate-api/pkg/signer"
)

// @title Attendance Gate API
// @version 1.0.0
// @description Classroom attendance collection with admission control.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type sessionStore interface {
	Create(ctx context.Context, session *models.AttendanceSession) error
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error)
	End(ctx context.Context, id string, endedAt time.Time) error
}

type recordStore interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	FindByIDNumber(ctx context.Context, sessionID, idNumber string) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.AttendanceRecord, int, error)
	Insert(ctx context.Context, record *models.AttendanceRecord) error
	Update(ctx context.Context, sessionID, oldIDNumber string, record *models.AttendanceRecord) error
	Delete(ctx context.Context, sessionID, idNumber string) error
}

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.AuditLog, error)
}

type credentialStore interface {
	Save(ctx context.Context, cred models.RotatingCredential, retention time.Duration) error
	ListSince(ctx context.Context, sessionID string, since time.Time) ([]models.RotatingCredential, error)
	Latest(ctx context.Context, sessionID string) (*models.RotatingCredential, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var (
		sessionRepo    sessionStore
		recordRepo     recordStore
		auditRepo      auditStore
		credentialRepo credentialStore
	)

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if err := repository.EnsureSchema(ctx, db); err != nil {
			return err
		}
		sessionRepo = repository.NewSessionRepository(db)
		recordRepo = repository.NewRecordRepository(db)
		auditRepo = repository.NewAuditRepository(db)
		checks["postgres"] = pingDB(db)
	case config.BackendMemory, "":
		logr.Warn("using in-memory store; records are lost on restart")
		sessionRepo = repository.NewMemorySessionRepository()
		recordRepo = repository.NewMemoryRecordRepository()
		auditRepo = repository.NewMemoryAuditRepository()
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.CredentialBackend {
	case config.BackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		credentialRepo = repository.NewRedisCredentialRepository(client)
		checks["redis"] = pingRedis(client)
	case config.BackendMemory, "":
		credentialRepo = repository.NewMemoryCredentialRepository()
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", cfg.CredentialBackend)
	}

	audit := service.NewAuditService(auditRepo, logr.Named("audit"), jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	})
	audit.Start(ctx)

	locks := service.NewSessionLocks()
	sessions := service.NewSessionService(sessionRepo, validate, logr, metrics, audit, service.SessionConfig{
		SingleActive: cfg.Admission.SingleActiveSession,
		Locks:        locks,
	})
	credentials := service.NewCredentialService(credentialRepo, sessions, logr, metrics, audit, service.CredentialConfig{
		Kind:             models.CredentialKind(strings.ToUpper(cfg.Credential.Kind)),
		CodeDigits:       cfg.Credential.CodeDigits,
		Lifetime:         cfg.Credential.Lifetime,
		HistoryRetention: cfg.Credential.HistoryRetention,
		Signer:           signer.NewTokenSigner(cfg.Credential.Secret),
	})
	admission := service.NewAdmissionService(recordRepo, sessions, credentials, service.NewRiskScorer(), validate, logr, metrics, audit, service.AdmissionConfig{
		RequireCredential:       cfg.Admission.RequireCredential,
		RequireProximity:        cfg.Admission.RequireProximity,
		RiskScoring:             cfg.Admission.RiskScoring,
		IDNumberLength:          cfg.Admission.IDNumberLength,
		Venue:                   geo.Point{Latitude: cfg.Venue.Latitude, Longitude: cfg.Venue.Longitude},
		RadiusMeters:            cfg.Venue.RadiusMeters,
		LegacyRequireCredential: cfg.Admission.LegacyRequireCredential,
		Locks:                   locks,
	})
	auth, err := service.NewAuthService(validate, logr, audit, service.AuthConfig{
		Username:     cfg.Admin.Username,
		Password:     cfg.Admin.Password,
		PasswordHash: cfg.Admin.PasswordHash,
		Secret:       cfg.JWT.Secret,
		Expiry:       cfg.JWT.Expiration,
		Issuer:       cfg.JWT.Issuer,
	})
	if err != nil {
		return err
	}
	exporter := service.NewExportService(admission, logr, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.RegisterOps(r, handler.NewMetricsHandler(metrics, checks))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:       handler.NewAuthHandler(auth),
		Attendance: handler.NewAttendanceHandler(admission, sessions),
		Sessions:   handler.NewSessionHandler(sessions),
		Credential: handler.NewCredentialHandler(credentials, cfg.PublicBaseURL),
		Records:    handler.NewRecordHandler(admission, exporter, audit),
	}, auth, middleware.NewTokenBucket(0, cfg.RateLimit.PerMinute))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreBackend), zap.String("credentials", cfg.CredentialBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	if err := audit.Stop(shutdownCtx); err != nil {
		logr.Error("audit drain", zap.Error(err))
	}
	return nil
}

func pingDB(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func pingRedis(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
