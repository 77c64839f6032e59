package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-gate-api/internal/models"
	"github.com/noah-isme/attendance-gate-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-gate-api/pkg/errors"
	"github.com/noah-isme/attendance-gate-api/pkg/signer"
)

type credentialFixture struct {
	svc      *CredentialService
	sessions *SessionService
	clock    *fakeClock
	session  *models.AttendanceSession
}

func newCredentialFixture(t *testing.T, cfg CredentialConfig) credentialFixture {
	t.Helper()
	clock := newFakeClock()
	sessions := NewSessionService(repository.NewMemorySessionRepository(), nil, nil, nil, nil, SessionConfig{Now: clock.Now})
	session, err := sessions.Start(context.Background(), StartSessionRequest{Kind: models.SessionKindPerSubject})
	require.NoError(t, err)
	cfg.Now = clock.Now
	svc := NewCredentialService(repository.NewMemoryCredentialRepository(), sessions, nil, nil, nil, cfg)
	return credentialFixture{svc: svc, sessions: sessions, clock: clock, session: session}
}

func TestCredentialServiceIssueCode(t *testing.T) {
	f := newCredentialFixture(t, CredentialConfig{CodeDigits: 4, Lifetime: 15 * time.Second})
	ctx := context.Background()

	pattern := regexp.MustCompile(`^\d{4}$`)
	for i := 0; i < 50; i++ {
		cred, err := f.svc.Issue(ctx, f.session.ID)
		require.NoError(t, err)
		assert.Regexp(t, pattern, cred.Value)
		assert.Equal(t, models.CredentialKindCode, cred.Kind)
	}
}

func TestCredentialServiceFreshnessBoundary(t *testing.T) {
	lifetime := 15 * time.Second
	f := newCredentialFixture(t, CredentialConfig{Lifetime: lifetime})
	ctx := context.Background()

	cred, err := f.svc.Issue(ctx, f.session.ID)
	require.NoError(t, err)

	f.clock.Advance(lifetime - time.Millisecond)
	ok, err := f.svc.IsValid(ctx, f.session.ID, cred.Value)
	require.NoError(t, err)
	assert.True(t, ok, "valid just inside the lifetime")

	f.clock.Advance(time.Millisecond)
	ok, err = f.svc.IsValid(ctx, f.session.ID, cred.Value)
	require.NoError(t, err)
	assert.True(t, ok, "valid exactly at the lifetime")

	f.clock.Advance(time.Millisecond)
	ok, err = f.svc.IsValid(ctx, f.session.ID, cred.Value)
	require.NoError(t, err)
	assert.False(t, ok, "invalid just past the lifetime")
}

func TestCredentialServiceOverlappingCredentialsBothValid(t *testing.T) {
	f := newCredentialFixture(t, CredentialConfig{Lifetime: 15 * time.Second, Kind: models.CredentialKindToken, Signer: signer.NewTokenSigner("k")})
	ctx := context.Background()

	first, err := f.svc.Issue(ctx, f.session.ID)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)
	second, err := f.svc.Issue(ctx, f.session.ID)
	require.NoError(t, err)

	for _, value := range []string{first.Value, second.Value} {
		ok, err := f.svc.IsValid(ctx, f.session.ID, value)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	f.clock.Advance(6 * time.Second)
	ok, err := f.svc.IsValid(ctx, f.session.ID, first.Value)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.svc.IsValid(ctx, f.session.ID, second.Value)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCredentialServiceRejectsWrongValues(t *testing.T) {
	f := newCredentialFixture(t, CredentialConfig{Kind: models.CredentialKindToken, Signer: signer.NewTokenSigner("k")})
	ctx := context.Background()

	cred, err := f.svc.Issue(ctx, f.session.ID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(cred.Value, "."))

	other, err := f.sessions.Start(ctx, StartSessionRequest{Kind: models.SessionKindDaily})
	require.NoError(t, err)

	for _, tc := range []struct {
		name      string
		sessionID string
		value     string
	}{
		{"empty", f.session.ID, ""},
		{"garbage", f.session.ID, "1234"},
		{"tampered", f.session.ID, cred.Value + "x"},
		{"other session", other.ID, cred.Value},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := f.svc.IsValid(ctx, tc.sessionID, tc.value)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCredentialServiceCurrentOrRefresh(t *testing.T) {
	lifetime := 15 * time.Second
	f := newCredentialFixture(t, CredentialConfig{Lifetime: lifetime})
	ctx := context.Background()

	first, remaining, err := f.svc.CurrentOrRefresh(ctx, f.session.ID, lifetime)
	require.NoError(t, err)
	assert.Equal(t, 15, remaining)

	f.clock.Advance(4500 * time.Millisecond)
	same, remaining, err := f.svc.CurrentOrRefresh(ctx, f.session.ID, lifetime)
	require.NoError(t, err)
	assert.Equal(t, first.IssuedAt, same.IssuedAt)
	assert.Equal(t, 11, remaining)

	f.clock.Advance(11 * time.Second)
	next, remaining, err := f.svc.CurrentOrRefresh(ctx, f.session.ID, lifetime)
	require.NoError(t, err)
	assert.True(t, next.IssuedAt.After(first.IssuedAt))
	assert.Equal(t, 15, remaining)
}

func TestCredentialServiceRefusesEndedOrUnknownSession(t *testing.T) {
	f := newCredentialFixture(t, CredentialConfig{})
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSessionNotFound.Code))

	_, err = f.sessions.End(ctx, f.session.ID)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, f.session.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSessionClosed.Code))
	_, _, err = f.svc.CurrentOrRefresh(ctx, f.session.ID, 0)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSessionClosed.Code))
}

func TestRandomCodeIsZeroPadded(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := randomCode(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
	}
}
