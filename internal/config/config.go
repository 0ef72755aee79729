package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 32

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Auth           AuthConfig
	Logging        LoggingConfig
	RateLimit      RateLimitConfig
	AdminBootstrap AdminBootstrapConfig
	Moderation     ModerationConfig
	Jobs           JobsConfig
	Email          EmailConfig
	Tracing        TracingConfig
	CORS           CORSConfig
	Environment    string
}

type ServerConfig struct {
	Host            string
	Port            int
	BaseURL         string
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MinConnections int
	ConnectTimeout time.Duration
	TxRetries      int
	// MigrationsPath overrides the embedded migrations with a directory on disk.
	MigrationsPath string
}

type AuthConfig struct {
	JWTSecret  string
	JWTExpiry  time.Duration
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
	BcryptCost int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	PublicPerMinute   int
	LoginPerMinute    int
	TrustedProxyCIDRs []string
}

type AdminBootstrapConfig struct {
	Username string
	Password string
	Email    string
}

// ModerationConfig selects and tunes the comment classifier.
type ModerationConfig struct {
	Provider          string // contentsafety | blocklist
	Endpoint          string
	APIKey            string
	Threshold         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Blocklist         []string
}

type JobsConfig struct {
	Enabled               bool
	ModerationMaxAttempts int
	ModerationBaseDelay   time.Duration
	ModerationMaxDelay    time.Duration
	SweepInterval         time.Duration
	StaleAfter            time.Duration
	JobTimeout            time.Duration
}

type EmailConfig struct {
	Enabled      bool
	Provider     string
	From         string
	ResendAPIKey string
}

// CORSConfig lists browser origins allowed to call the API. Development
// environments allow any origin.
type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			BaseURL:         getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxBodyBytes:    int64(getEnvInt("SERVER_MAX_BODY_BYTES", 1<<20)),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MinConnections: getEnvInt("DATABASE_MIN_CONNECTIONS", 2),
			ConnectTimeout: getEnvDuration("DATABASE_CONNECT_TIMEOUT", 10*time.Second),
			TxRetries:      getEnvInt("DATABASE_TX_RETRIES", 3),
			MigrationsPath: getEnv("DATABASE_MIGRATIONS_PATH", ""),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			JWTExpiry:  time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:     getEnv("JWT_ISSUER", "eventplus"),
			Audience:   getEnv("JWT_AUDIENCE", "eventplus-api"),
			ClockSkew:  getEnvDuration("JWT_CLOCK_SKEW", 5*time.Minute),
			BcryptCost: getEnvInt("BCRYPT_COST", 12),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:   getEnvInt("RATE_LIMIT_PUBLIC", 120),
			LoginPerMinute:    getEnvInt("RATE_LIMIT_LOGIN", 10),
			TrustedProxyCIDRs: getEnvList("TRUSTED_PROXY_CIDRS"),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Email:    getEnv("ADMIN_EMAIL", ""),
		},
		Moderation: ModerationConfig{
			Provider:          strings.ToLower(getEnv("MODERATION_PROVIDER", "blocklist")),
			Endpoint:          getEnv("MODERATION_ENDPOINT", ""),
			APIKey:            getEnv("MODERATION_API_KEY", ""),
			Threshold:         getEnvInt("MODERATION_THRESHOLD", 4),
			Timeout:           getEnvDuration("MODERATION_TIMEOUT", 3*time.Second),
			RequestsPerSecond: getEnvFloat("MODERATION_RPS", 10),
			Blocklist:         getEnvList("MODERATION_BLOCKLIST"),
		},
		Jobs: JobsConfig{
			Enabled:               getEnvBool("JOBS_ENABLED", true),
			ModerationMaxAttempts: getEnvInt("JOB_MODERATION_MAX_ATTEMPTS", 5),
			ModerationBaseDelay:   getEnvDuration("JOB_MODERATION_BASE_DELAY", 15*time.Second),
			ModerationMaxDelay:    getEnvDuration("JOB_MODERATION_MAX_DELAY", 5*time.Minute),
			SweepInterval:         getEnvDuration("JOB_SWEEP_INTERVAL", 5*time.Minute),
			StaleAfter:            getEnvDuration("JOB_STALE_AFTER", 10*time.Minute),
			JobTimeout:            getEnvDuration("JOB_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
			Provider:     getEnv("EMAIL_PROVIDER", "resend"),
			From:         getEnv("EMAIL_FROM", "EventPlus <no-reply@eventplus.local>"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "eventplus"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}
	cfg.CORS.AllowAllOrigins = cfg.IsDevelopment() && len(cfg.CORS.AllowedOrigins) == 0

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDevelopment reports whether relaxed secret rules apply.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

func (c Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.IsDevelopment() && len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s", minSecretLength, c.Environment)
	}
	if c.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}

	switch c.Moderation.Provider {
	case "contentsafety":
		if c.Moderation.Endpoint == "" || c.Moderation.APIKey == "" {
			return fmt.Errorf("MODERATION_ENDPOINT and MODERATION_API_KEY are required for provider contentsafety")
		}
	case "blocklist":
	default:
		return fmt.Errorf("unsupported MODERATION_PROVIDER %q (must be 'contentsafety' or 'blocklist')", c.Moderation.Provider)
	}
	if c.Moderation.Timeout <= 0 {
		return fmt.Errorf("MODERATION_TIMEOUT must be positive")
	}

	if c.Jobs.ModerationMaxAttempts < 1 {
		return fmt.Errorf("JOB_MODERATION_MAX_ATTEMPTS must be at least 1")
	}
	if c.Email.Enabled && c.Email.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is required when EMAIL_ENABLED is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
