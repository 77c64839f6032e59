package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	StoreBackend      string
	CredentialBackend string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Admin      AdminConfig
	CORS       CORSConfig
	Log        LogConfig
	Admission  AdmissionConfig
	Venue      VenueConfig
	Credential CredentialConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AdminConfig holds the single course-rep account. PasswordHash wins over Password.
type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdmissionConfig toggles the optional admission checks for a deployment.
type AdmissionConfig struct {
	RequireCredential       bool
	RequireProximity        bool
	RiskScoring             bool
	IDNumberLength          int
	SingleActiveSession     bool
	LegacyRequireCredential bool
}

// VenueConfig is the geofence centre used by the proximity check.
type VenueConfig struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// CredentialConfig configures rotating attendance codes.
type CredentialConfig struct {
	Kind             string
	CodeDigits       int
	Lifetime         time.Duration
	Secret           string
	HistoryRetention time.Duration
}

// RateLimitConfig limits public submission endpoints per client IP.
type RateLimitConfig struct {
	PerMinute int
}

// AuditConfig sizes the background audit writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")
	cfg.StoreBackend = strings.ToLower(v.GetString("STORE_BACKEND"))
	cfg.CredentialBackend = strings.ToLower(v.GetString("CREDENTIAL_BACKEND"))

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Admin = AdminConfig{
		Username:     v.GetString("ADMIN_USERNAME"),
		Password:     v.GetString("ADMIN_PASSWORD"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admission = AdmissionConfig{
		RequireCredential:       v.GetBool("ADMISSION_REQUIRE_CREDENTIAL"),
		RequireProximity:        v.GetBool("ADMISSION_REQUIRE_PROXIMITY"),
		RiskScoring:             v.GetBool("ADMISSION_RISK_SCORING"),
		IDNumberLength:          v.GetInt("ADMISSION_ID_NUMBER_LENGTH"),
		SingleActiveSession:     v.GetBool("ADMISSION_SINGLE_ACTIVE_SESSION"),
		LegacyRequireCredential: v.GetBool("ADMISSION_LEGACY_REQUIRE_CREDENTIAL"),
	}

	cfg.Venue = VenueConfig{
		Latitude:     v.GetFloat64("VENUE_LATITUDE"),
		Longitude:    v.GetFloat64("VENUE_LONGITUDE"),
		RadiusMeters: v.GetFloat64("VENUE_RADIUS_METERS"),
	}

	cfg.Credential = CredentialConfig{
		Kind:             strings.ToLower(v.GetString("CREDENTIAL_KIND")),
		CodeDigits:       v.GetInt("CREDENTIAL_CODE_DIGITS"),
		Lifetime:         parseDuration(v.GetString("CREDENTIAL_LIFETIME"), 15*time.Second),
		Secret:           v.GetString("CREDENTIAL_SECRET"),
		HistoryRetention: parseDuration(v.GetString("CREDENTIAL_HISTORY_RETENTION"), 10*time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{PerMinute: v.GetInt("RATE_LIMIT_PER_MIN")}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("CREDENTIAL_BACKEND", BackendMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "attendance-gate")

	v.SetDefault("ADMIN_USERNAME", "courserep")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMISSION_REQUIRE_CREDENTIAL", true)
	v.SetDefault("ADMISSION_REQUIRE_PROXIMITY", false)
	v.SetDefault("ADMISSION_RISK_SCORING", false)
	v.SetDefault("ADMISSION_ID_NUMBER_LENGTH", 11)
	v.SetDefault("ADMISSION_SINGLE_ACTIVE_SESSION", true)
	v.SetDefault("ADMISSION_LEGACY_REQUIRE_CREDENTIAL", false)

	v.SetDefault("VENUE_LATITUDE", 5.384071)
	v.SetDefault("VENUE_LONGITUDE", 6.999249)
	v.SetDefault("VENUE_RADIUS_METERS", 500)

	v.SetDefault("CREDENTIAL_KIND", "code")
	v.SetDefault("CREDENTIAL_CODE_DIGITS", 4)
	v.SetDefault("CREDENTIAL_LIFETIME", "15s")
	v.SetDefault("CREDENTIAL_SECRET", "dev_credential_secret")
	v.SetDefault("CREDENTIAL_HISTORY_RETENTION", "10m")

	v.SetDefault("RATE_LIMIT_PER_MIN", 60)

	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_BUFFER_SIZE", 64)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
