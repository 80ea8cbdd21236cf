package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds the application configuration.
type Config struct {
	Environment string

	DBDriver         string
	DatabaseURL      string
	DBAutoMigrate    bool
	DBTimeout        time.Duration
	DBRetryAttempts  int
	DBRetryBaseDelay time.Duration

	APIAddr  string
	GRPCAddr string

	RedisAddr       string
	RateLimit       int
	RateWindow      time.Duration
	MaxBodyBytes    int64
	IPAllowlist     string
	CORSOrigins     []string
	TLSCertFile     string
	TLSKeyFile      string
	TLSClientCAFile string
	// TLSRequireClientCert rejects TLS handshakes without a certificate signed by TLSClientCAFile.
	TLSRequireClientCert bool

	LogLevel slog.Level
}

// Load reads an optional .env file from the working directory and then the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return LoadFromEnv()
}

// LoadFromEnv builds the configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		Environment: os.Getenv("APP_ENV"),
		DBDriver:    getEnv("DB_DRIVER", DriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		APIAddr:     getEnv("API_ADDR", ":8080"),
		GRPCAddr:    getEnv("GRPC_ADDR", ":50051"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		IPAllowlist: os.Getenv("API_IP_ALLOWLIST"),
		TLSCertFile: os.Getenv("API_TLS_CERT"),
		TLSKeyFile:  os.Getenv("API_TLS_KEY"),

		TLSClientCAFile: os.Getenv("API_TLS_CA"),
	}

	cfg.DBAutoMigrate = p.boolVar("DB_AUTO_MIGRATE", false)
	cfg.TLSRequireClientCert = p.boolVar("API_TLS_REQUIRE_CLIENT_CERT", false)
	cfg.DBTimeout = p.durationVar("DB_TIMEOUT", 5*time.Second)
	cfg.DBRetryAttempts = p.intVar("DB_RETRY_ATTEMPTS", 3)
	cfg.DBRetryBaseDelay = p.durationVar("DB_RETRY_BASE_DELAY", 10*time.Millisecond)
	cfg.RateLimit = p.intVar("API_RATE_LIMIT", 100)
	cfg.RateWindow = p.durationVar("API_RATE_WINDOW", time.Minute)
	cfg.MaxBodyBytes = int64(p.intVar("API_MAX_BODY_BYTES", 1<<20))
	cfg.LogLevel = p.levelVar("LOG_LEVEL", slog.LevelInfo)

	for _, o := range strings.Split(os.Getenv("API_CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	// Shared environments need a real database and a shared rate-limit store.
	if c.Environment == "production" || c.Environment == "staging" {
		if c.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	switch c.DBDriver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Environment == "production" || c.Environment == "staging" {
			return errors.New("DB_DRIVER=sqlite3 is not allowed in " + c.Environment)
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %s or %s, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("API_TLS_CERT and API_TLS_KEY must be set together")
	}
	if c.TLSClientCAFile != "" && c.TLSCertFile == "" {
		return errors.New("API_TLS_CA requires API_TLS_CERT and API_TLS_KEY")
	}
	if c.TLSRequireClientCert && c.TLSClientCAFile == "" {
		return errors.New("API_TLS_REQUIRE_CLIENT_CERT requires API_TLS_CA")
	}
	if c.DBRetryAttempts < 1 {
		return errors.New("DB_RETRY_ATTEMPTS must be at least 1")
	}
	if c.RateLimit < 1 {
		return errors.New("API_RATE_LIMIT must be at least 1")
	}

	return nil
}

// TLSEnabled reports whether the HTTP API should serve TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// parser keeps the first malformed value it sees so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (p *parser) intVar(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) boolVar(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *parser) durationVar(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *parser) levelVar(key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return l
}
