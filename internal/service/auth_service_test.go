package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
)

func newAuthService(t *testing.T, clock *fakeClock, audit auditRecorder) *AuthService {
	t.Helper()
	svc, err := NewAuthService(nil, nil, audit, AuthConfig{
		Username: "courserep",
		Password: "s3cret",
		Secret:   "jwt-secret",
		Expiry:   time.Hour,
		Issuer:   "attendance-gate",
		Now:      clock.Now,
	})
	require.NoError(t, err)
	return svc
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	clock := newFakeClock()
	spy := &auditSpy{}
	svc := newAuthService(t, clock, spy)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "courserep", Password: "s3cret", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCourseRep, claims.Role)
	assert.Equal(t, "courserep", claims.Username)
	assert.Equal(t, []models.AuditAction{models.AuditActionAdminLogin}, spy.actions())

	clock.Advance(2 * time.Hour)
	_, err = svc.ValidateToken(resp.AccessToken)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc := newAuthService(t, newFakeClock(), nil)

	for _, req := range []models.LoginRequest{
		{Username: "courserep", Password: "wrong"},
		{Username: "someone", Password: "s3cret"},
	} {
		_, err := svc.Login(context.Background(), req)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials.Code))
	}

	_, err := svc.Login(context.Background(), models.LoginRequest{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestAuthServicePasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := NewAuthService(nil, nil, nil, AuthConfig{Username: "rep", PasswordHash: string(hash), Password: "ignored", Secret: "k"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "rep", Password: "hashed-pass"})
	assert.NoError(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "rep", Password: "ignored"})
	assert.Error(t, err)

	_, err = NewAuthService(nil, nil, nil, AuthConfig{PasswordHash: "not-bcrypt", Secret: "k"})
	assert.Error(t, err)
}

func TestAuthServiceDisabledWithoutPassword(t *testing.T) {
	svc, err := NewAuthService(nil, nil, nil, AuthConfig{Username: "rep", Secret: "k"})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "rep", Password: "anything"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials.Code))
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := newAuthService(t, newFakeClock(), nil)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{Role: models.RoleCourseRep})
	signed, err := other.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
