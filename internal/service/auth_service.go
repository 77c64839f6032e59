package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

// AuthConfig configures the course-rep account and access tokens.
// PasswordHash takes precedence over Password.
type AuthConfig struct {
	Username     string
	Password     string
	PasswordHash string
	Secret       string
	Expiry       time.Duration
	Issuer       string
	Now          func() time.Time
}

// AuthService authenticates the course rep and validates access tokens.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	audit     auditRecorder
	config    AuthConfig
	hash      []byte
}

// NewAuthService constructs the service, hashing a plain password when no hash is configured.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, audit auditRecorder, cfg AuthConfig) (*AuthService, error) {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 12 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	var hash []byte
	switch {
	case cfg.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
		hash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		generated, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = generated
	default:
		logger.Warn("no admin password configured; admin login is disabled")
	}
	cfg.Password = ""

	return &AuthService{validator: validate, logger: logger, audit: audit, config: cfg, hash: hash}, nil
}

// Login checks the course-rep credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if len(s.hash) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.config.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.hash, []byte(req.Password))
	if !userOK || passErr != nil {
		s.logger.Info("admin login failed", zap.String("username", req.Username), zap.String("ip", req.IP))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	issuedAt := s.config.Now()
	token, err := s.generateAccessToken(issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if s.audit != nil {
		s.audit.Record(newAuditEntry(WithActor(ctx, s.config.Username), models.AuditActionAdminLogin, "", "", map[string]interface{}{"ip": req.IP}))
	}
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		IssuedAt:    issuedAt,
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.config.Now), jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		Username: s.config.Username,
		Role:     models.RoleCourseRep,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   s.config.Username,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
}
