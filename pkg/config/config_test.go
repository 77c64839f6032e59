package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchLectureVenue(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 11, cfg.Admission.IDNumberLength)
	assert.True(t, cfg.Admission.RequireCredential)
	assert.False(t, cfg.Admission.LegacyRequireCredential)
	assert.InDelta(t, 5.384071, cfg.Venue.Latitude, 1e-9)
	assert.InDelta(t, 6.999249, cfg.Venue.Longitude, 1e-9)
	assert.Equal(t, float64(500), cfg.Venue.RadiusMeters)
	assert.Equal(t, 15*time.Second, cfg.Credential.Lifetime)
	assert.Equal(t, 4, cfg.Credential.CodeDigits)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CREDENTIAL_LIFETIME", "11s")
	t.Setenv("ADMISSION_RISK_SCORING", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("PUBLIC_BASE_URL", "https://attend.example/")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, 11*time.Second, cfg.Credential.Lifetime)
	assert.True(t, cfg.Admission.RiskScoring)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "https://attend.example", cfg.PublicBaseURL)
}

func TestParseDurationFallback(t *testing.T) {
	require.Equal(t, time.Minute, parseDuration("", time.Minute))
	require.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	require.Equal(t, 20*time.Second, parseDuration("20s", time.Minute))
}
