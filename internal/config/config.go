package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/defect-dispatch/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Dispatch     DispatchConfig
	Tracking     TrackingConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds delivery endpoints and worker sizing.
type NotificationConfig struct {
	WebhookURL            string
	RedisChannel          string
	Workers               int
	QueueSize             int
	MaxAttempts           int
	RetryBackoff          time.Duration
	EnqueueTimeout        time.Duration
	SupervisorMinSeverity domain.Severity
	SupervisorIDs         []string
}

// DispatchConfig tunes ETA derivation.
type DispatchConfig struct {
	AssumedSpeedMph float64
}

// TrackingConfig tunes live position sampling.
type TrackingConfig struct {
	DistanceThresholdMeters float64
	PermissionTimeout       time.Duration
	SampleBuffer            int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	minSeverity := domain.Severity(strings.ToLower(getEnv("NOTIFY_SUPERVISOR_MIN_SEVERITY", string(domain.SeverityMajor))))
	if !minSeverity.IsValid() {
		return nil, fmt.Errorf("invalid NOTIFY_SUPERVISOR_MIN_SEVERITY: %q", minSeverity)
	}

	speed := getEnvAsFloat("DISPATCH_ASSUMED_SPEED_MPH", 30)
	if speed <= 0 {
		return nil, fmt.Errorf("DISPATCH_ASSUMED_SPEED_MPH must be positive, got %v", speed)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "defect-dispatch"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			RedisChannel:          getEnv("NOTIFY_REDIS_CHANNEL", "defect-dispatch.notifications"),
			Workers:               getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:             getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			MaxAttempts:           getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			RetryBackoff:          getEnvAsDuration("NOTIFY_RETRY_BACKOFF", 500*time.Millisecond),
			EnqueueTimeout:        getEnvAsDuration("NOTIFY_ENQUEUE_TIMEOUT", 250*time.Millisecond),
			SupervisorMinSeverity: minSeverity,
			SupervisorIDs:         getEnvAsList("NOTIFY_SUPERVISOR_IDS"),
		},
		Dispatch: DispatchConfig{
			AssumedSpeedMph: speed,
		},
		Tracking: TrackingConfig{
			DistanceThresholdMeters: getEnvAsFloat("TRACKING_DISTANCE_THRESHOLD_METERS", 50),
			PermissionTimeout:       getEnvAsDuration("TRACKING_PERMISSION_TIMEOUT", 2*time.Second),
			SampleBuffer:            getEnvAsInt("TRACKING_SAMPLE_BUFFER", 16),
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

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
