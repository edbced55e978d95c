package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BradenHooton/admingate/internal/models"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Gate        GateConfig
	Auth        AuthConfig
	Alerts      AlertConfig
	Credentials []models.Credential

	// Warnings are non-fatal problems for the caller to log
	Warnings []string
	// BuiltinCredentials is set when no credentials were configured and the development record is in use
	BuiltinCredentials bool
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Channel   string
}

type ServerConfig struct {
	Port             string
	Env              string
	LogLevel         string
	AllowedOrigins   []string
	TrustedProxies   []string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	StateRateLimit   int
	StateRateWindow  time.Duration
	ShutdownDeadline time.Duration
}

type GateConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	SessionTTL      time.Duration
	TickInterval    time.Duration
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	StoreBackend    string
}

type AuthConfig struct {
	SigningSecret  string
	BcryptCost     int
	TimingBaseMs   int
	TimingRandomMs int
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string
}

type AlertConfig struct {
	Recipients  []string
	FromAddress string
	AWSRegion   string
}

// Enabled reports whether lockout alerts should be sent
func (a AlertConfig) Enabled() bool {
	return len(a.Recipients) > 0 && a.FromAddress != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	signingSecret := getEnv("SESSION_SIGNING_SECRET", "")
	if signingSecret == "" {
		return nil, fmt.Errorf("SESSION_SIGNING_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			Env:              env,
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:   parseAllowedOrigins(env),
			TrustedProxies:   splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:      getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:     getEnvAsDuration("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:      getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			LoginRateLimit:   getEnvAsInt("LOGIN_RATE_LIMIT", 10),
			LoginRateWindow:  getEnvAsDuration("LOGIN_RATE_WINDOW", time.Minute),
			StateRateLimit:   getEnvAsInt("STATE_RATE_LIMIT", 120),
			StateRateWindow:  getEnvAsDuration("STATE_RATE_WINDOW", time.Minute),
			ShutdownDeadline: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "admingate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "admingate:"),
			Channel:   getEnv("REDIS_CHANNEL", "admingate:changes"),
		},
		Gate: GateConfig{
			MaxAttempts:     getEnvAsInt("MAX_LOGIN_ATTEMPTS", 3),
			LockoutDuration: getEnvAsDuration("LOCKOUT_DURATION", 30*time.Second),
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 2*time.Hour),
			TickInterval:    getEnvAsDuration("COUNTDOWN_INTERVAL", time.Second),
			IdleTimeout:     getEnvAsDuration("GATEKEEPER_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval:   getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
			StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		},
		Auth: AuthConfig{
			SigningSecret:  signingSecret,
			BcryptCost:     getEnvAsInt("BCRYPT_COST", 12),
			TimingBaseMs:   getEnvAsInt("TIMING_DELAY_BASE_MS", 500),
			TimingRandomMs: getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:   getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite: strings.ToLower(getEnv("COOKIE_SAMESITE", "strict")),
		},
		Alerts: AlertConfig{
			Recipients:  splitList(getEnv("ALERT_EMAIL_TO", "")),
			FromAddress: getEnv("ALERT_EMAIL_FROM", ""),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
		},
	}

	if err := validateSigningSecret(signingSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Gate.validate(); err != nil {
		return nil, err
	}

	switch cfg.Gate.StoreBackend {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Gate.StoreBackend)
	}

	if err := cfg.loadCredentials(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (g GateConfig) validate() error {
	if g.MaxAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if g.LockoutDuration <= 0 || g.SessionTTL <= 0 || g.TickInterval <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION, SESSION_TTL and COUNTDOWN_INTERVAL must be positive")
	}
	if g.TickInterval > g.LockoutDuration {
		return fmt.Errorf("COUNTDOWN_INTERVAL cannot exceed LOCKOUT_DURATION")
	}
	if g.SweepInterval <= 0 || g.IdleTimeout <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL and GATEKEEPER_IDLE_TIMEOUT must be positive")
	}
	return nil
}

// validateSigningSecret enforces minimum security standards for the token signing secret
func validateSigningSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SIGNING_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SIGNING_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: the dashboard's Vite dev server and common local ports
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	}
}
