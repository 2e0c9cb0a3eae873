package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend drivers understood by the service.
const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Backend      BackendConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Poller       PollerConfig
	Attachments  AttachmentConfig
	Notification NotificationConfig
	Summary      SummaryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// BackendConfig selects and configures the record/identity/storage backend.
type BackendConfig struct {
	Driver string
	URL    string
	APIKey string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
	// Output is a zap sink path; empty means stdout.
	Output string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	MagicLinkTTLMinutes    int
	MagicLinkRedirectURL   string
	BcryptCost             int
	IdentityTimeoutSeconds int
}

// PollerConfig controls polling views.
type PollerConfig struct {
	IntervalSeconds int
}

// AttachmentConfig controls uploads to object storage.
type AttachmentConfig struct {
	Bucket   string
	MaxBytes int
}

// NotificationConfig holds notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// SummaryConfig schedules the status summary job.
type SummaryConfig struct {
	Cron string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := strings.ToLower(getEnv("BACKEND_DRIVER", DriverSupabase))
	switch driver {
	case DriverSupabase, DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("invalid BACKEND_DRIVER %q", driver)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "repair-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Backend: BackendConfig{
			Driver: driver,
			URL:    strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			APIKey: os.Getenv("SUPABASE_ANON_KEY"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			MagicLinkTTLMinutes:    getEnvAsInt("AUTH_MAGIC_LINK_TTL_MINUTES", 15),
			MagicLinkRedirectURL:   getEnv("AUTH_MAGIC_LINK_REDIRECT_URL", "http://localhost:5173"),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			IdentityTimeoutSeconds: getEnvAsInt("AUTH_IDENTITY_TIMEOUT_SECONDS", 3),
		},
		Poller: PollerConfig{
			IntervalSeconds: getEnvAsInt("POLL_INTERVAL_SECONDS", 5),
		},
		Attachments: AttachmentConfig{
			Bucket:   getEnv("ATTACHMENT_BUCKET", "repair-attachments"),
			MaxBytes: getEnvAsInt("ATTACHMENT_MAX_BYTES", 10<<20),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Summary: SummaryConfig{
			Cron: getEnv("SUMMARY_CRON", "@every 1h"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Configured reports whether the selected backend has everything it
// needs. An unconfigured backend degrades the service to no-op
// adapters instead of failing startup.
func (b BackendConfig) Configured(pg PostgresConfig) bool {
	switch b.Driver {
	case DriverSupabase:
		return b.URL != "" && b.APIKey != "" && strings.HasPrefix(b.URL, "https://")
	case DriverPostgres:
		return pg.DSN != ""
	case DriverMemory:
		return true
	}
	return false
}

// IdentityTimeout bounds session resolution.
func (a AuthConfig) IdentityTimeout() time.Duration {
	if a.IdentityTimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(a.IdentityTimeoutSeconds) * time.Second
}

// MagicLinkTTL returns how long a one-time login link stays valid.
func (a AuthConfig) MagicLinkTTL() time.Duration {
	if a.MagicLinkTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(a.MagicLinkTTLMinutes) * time.Minute
}

// Interval returns the polling period.
func (p PollerConfig) Interval() time.Duration {
	if p.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.IntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
