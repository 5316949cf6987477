package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Server      ServerConfig
	ACME        ACMEConfig
	Provisioner ProvisionerConfig
	Slack       SlackConfig
	SelfHosted  bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// ACMEConfig holds certificate authority settings.
type ACMEConfig struct {
	DirectoryURL string
	Email        string
	CacheDir     string
}

// ProvisionerConfig holds certificate provisioning engine settings.
type ProvisionerConfig struct {
	Workers       int
	PollInterval  time.Duration
	Lease         time.Duration
	IssueTimeout  time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	DrainTimeout  time.Duration
	SweepInterval time.Duration
	RenewBefore   time.Duration
	RenewEnabled  bool
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("TENANTD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("TENANTD_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("TENANTD_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("TENANTD_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("TENANTD_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	workers, err := getEnvInt("TENANTD_PROVISIONER_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pollInterval, err := getEnvDuration("TENANTD_PROVISIONER_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	lease, err := getEnvDuration("TENANTD_PROVISIONER_LEASE", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	issueTimeout, err := getEnvDuration("TENANTD_PROVISIONER_ISSUE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxAttempts, err := getEnvInt("TENANTD_PROVISIONER_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	backoffBase, err := getEnvDuration("TENANTD_PROVISIONER_BACKOFF_BASE", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	backoffCap, err := getEnvDuration("TENANTD_PROVISIONER_BACKOFF_CAP", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	drainTimeout, err := getEnvDuration("TENANTD_PROVISIONER_DRAIN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sweepInterval, err := getEnvDuration("TENANTD_PROVISIONER_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	renewBefore, err := getEnvDuration("TENANTD_PROVISIONER_RENEW_BEFORE", 30*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	renewEnabled, err := getEnvBool("TENANTD_PROVISIONER_RENEW_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("TENANTD_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("TENANTD_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("TENANTD_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("TENANTD_DB_USER", "tenantd"),
			Password: getEnv("TENANTD_DB_PASSWORD", ""),
			DBName:   getEnv("TENANTD_DB_NAME", "tenantd_dev"),
			SSLMode:  getEnv("TENANTD_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("TENANTD_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("TENANTD_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("TENANTD_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:         getEnv("TENANTD_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		ACME: ACMEConfig{
			DirectoryURL: getEnv("TENANTD_ACME_DIRECTORY_URL", ""),
			Email:        getEnv("TENANTD_ACME_EMAIL", ""),
			CacheDir:     getEnv("TENANTD_ACME_CACHE_DIR", "/var/lib/tenantd/certs"),
		},
		Provisioner: ProvisionerConfig{
			Workers:       workers,
			PollInterval:  pollInterval,
			Lease:         lease,
			IssueTimeout:  issueTimeout,
			MaxAttempts:   maxAttempts,
			BackoffBase:   backoffBase,
			BackoffCap:    backoffCap,
			DrainTimeout:  drainTimeout,
			SweepInterval: sweepInterval,
			RenewBefore:   renewBefore,
			RenewEnabled:  renewEnabled,
		},
		Slack: SlackConfig{
			BotToken: getEnv("TENANTD_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("TENANTD_SLACK_CHANNEL", ""),
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("TENANTD_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("TENANTD_JWT_SECRET must be at least 32 characters")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("TENANTD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("TENANTD_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("TENANTD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("TENANTD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("TENANTD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Provisioner.Workers < 1 {
		return fmt.Errorf("TENANTD_PROVISIONER_WORKERS must be >= 1, got %d", c.Provisioner.Workers)
	}
	if c.Provisioner.MaxAttempts < 1 {
		return fmt.Errorf("TENANTD_PROVISIONER_MAX_ATTEMPTS must be >= 1, got %d", c.Provisioner.MaxAttempts)
	}
	if c.Provisioner.BackoffBase <= 0 {
		return fmt.Errorf("TENANTD_PROVISIONER_BACKOFF_BASE must be positive, got %s", c.Provisioner.BackoffBase)
	}
	if c.Provisioner.BackoffCap < c.Provisioner.BackoffBase {
		return fmt.Errorf("TENANTD_PROVISIONER_BACKOFF_CAP must be >= backoff base, got %s", c.Provisioner.BackoffCap)
	}
	if c.Provisioner.DrainTimeout <= 0 {
		return fmt.Errorf("TENANTD_PROVISIONER_DRAIN_TIMEOUT must be positive, got %s", c.Provisioner.DrainTimeout)
	}
	if c.Slack.BotToken != "" && c.Slack.Channel == "" {
		return errors.New("TENANTD_SLACK_CHANNEL is required when TENANTD_SLACK_BOT_TOKEN is set")
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
