package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "TENANTD_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "TENANTD_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "TENANTD_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback int
		want     int
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "TENANTD_TEST_INT_UNSET", setVal: nil, fallback: 42, want: 42},
		{name: "parses valid int", key: "TENANTD_TEST_INT_VALID", setVal: strPtr("8080"), fallback: 0, want: 8080},
		{name: "returns fallback for empty string", key: "TENANTD_TEST_INT_EMPTY", setVal: strPtr(""), fallback: 25, want: 25},
		{name: "errors on non-numeric", key: "TENANTD_TEST_INT_NAN", setVal: strPtr("abc"), fallback: 0, wantErr: true},
		{name: "errors on float", key: "TENANTD_TEST_INT_FLOAT", setVal: strPtr("3.14"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvInt(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "TENANTD_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Second, want: 5 * time.Second},
		{name: "parses seconds", key: "TENANTD_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses composite", key: "TENANTD_TEST_DUR_COMP", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "errors on invalid", key: "TENANTD_TEST_DUR_INV", setVal: strPtr("notaduration"), fallback: 0, wantErr: true},
		{name: "errors on bare number", key: "TENANTD_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() error cases
// ---------------------------------------------------------------------------

func TestLoad_MissingJWTSecret(t *testing.T) {
	// All defaults apply; JWT secret is empty => must fail.
	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TENANTD_JWT_SECRET")
}

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		errMsg string
	}{
		{name: "DB_PORT not a number", envKey: "TENANTD_DB_PORT", envVal: "abc", errMsg: "TENANTD_DB_PORT"},
		{name: "DB_PORT zero", envKey: "TENANTD_DB_PORT", envVal: "0", errMsg: "TENANTD_DB_PORT"},
		{name: "DB_PORT too high", envKey: "TENANTD_DB_PORT", envVal: "65536", errMsg: "TENANTD_DB_PORT"},
		{name: "DB_MAX_CONNS zero", envKey: "TENANTD_DB_MAX_CONNS", envVal: "0", errMsg: "TENANTD_DB_MAX_CONNS"},
		{name: "SERVER_READ_TIMEOUT invalid", envKey: "TENANTD_SERVER_READ_TIMEOUT", envVal: "notduration", errMsg: "TENANTD_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT zero", envKey: "TENANTD_SERVER_WRITE_TIMEOUT", envVal: "0s", errMsg: "TENANTD_SERVER_WRITE_TIMEOUT"},
		{name: "REDIS_DB not a number", envKey: "TENANTD_REDIS_DB", envVal: "abc", errMsg: "TENANTD_REDIS_DB"},
		{name: "PROVISIONER_WORKERS zero", envKey: "TENANTD_PROVISIONER_WORKERS", envVal: "0", errMsg: "TENANTD_PROVISIONER_WORKERS"},
		{name: "PROVISIONER_MAX_ATTEMPTS zero", envKey: "TENANTD_PROVISIONER_MAX_ATTEMPTS", envVal: "0", errMsg: "TENANTD_PROVISIONER_MAX_ATTEMPTS"},
		{name: "PROVISIONER_BACKOFF_BASE invalid", envKey: "TENANTD_PROVISIONER_BACKOFF_BASE", envVal: "badval", errMsg: "TENANTD_PROVISIONER_BACKOFF_BASE"},
		{name: "PROVISIONER_BACKOFF_CAP below base", envKey: "TENANTD_PROVISIONER_BACKOFF_CAP", envVal: "1s", errMsg: "TENANTD_PROVISIONER_BACKOFF_CAP"},
		{name: "RENEW_ENABLED not a bool", envKey: "TENANTD_PROVISIONER_RENEW_ENABLED", envVal: "yes", errMsg: "TENANTD_PROVISIONER_RENEW_ENABLED"},
		{name: "SELF_HOSTED not a bool", envKey: "TENANTD_SELF_HOSTED", envVal: "yes", errMsg: "TENANTD_SELF_HOSTED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Always set JWT secret so failures are from the var under test.
			t.Setenv("TENANTD_JWT_SECRET", "test-secret-for-error-cases-32ch!")
			t.Setenv(tc.envKey, tc.envVal)

			cfg, err := Load()
			require.Error(t, err, "expected error for %s=%q", tc.envKey, tc.envVal)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoad_SlackChannelRequiredWithToken(t *testing.T) {
	t.Setenv("TENANTD_JWT_SECRET", "test-secret-for-error-cases-32ch!")
	t.Setenv("TENANTD_SLACK_BOT_TOKEN", "xoxb-test")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TENANTD_SLACK_CHANNEL")
}

// ---------------------------------------------------------------------------
// Load() happy paths
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	// Only the required JWT secret is set; everything else uses defaults.
	t.Setenv("TENANTD_JWT_SECRET", "my-dev-secret-at-least-32-chars!!")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "tenantd", cfg.Database.User)
	assert.Equal(t, "tenantd_dev", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxConns)

	// Redis defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	// Server defaults.
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// ACME defaults.
	assert.Empty(t, cfg.ACME.DirectoryURL, "empty means the production directory")
	assert.Equal(t, "/var/lib/tenantd/certs", cfg.ACME.CacheDir)

	// Provisioner defaults.
	assert.Equal(t, 4, cfg.Provisioner.Workers)
	assert.Equal(t, time.Second, cfg.Provisioner.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Provisioner.Lease)
	assert.Equal(t, 2*time.Minute, cfg.Provisioner.IssueTimeout)
	assert.Equal(t, 5, cfg.Provisioner.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Provisioner.BackoffBase)
	assert.Equal(t, 15*time.Minute, cfg.Provisioner.BackoffCap)
	assert.Equal(t, 30*time.Second, cfg.Provisioner.DrainTimeout)
	assert.Equal(t, time.Minute, cfg.Provisioner.SweepInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.Provisioner.RenewBefore)
	assert.True(t, cfg.Provisioner.RenewEnabled)

	// Slack defaults.
	assert.Empty(t, cfg.Slack.BotToken)
	assert.Empty(t, cfg.Slack.Channel)

	assert.False(t, cfg.SelfHosted)
}

func TestLoad_AllCustomValues(t *testing.T) {
	envs := map[string]string{
		"TENANTD_DB_HOST":      "db.prod.internal",
		"TENANTD_DB_PORT":      "5433",
		"TENANTD_DB_USER":      "prod_user",
		"TENANTD_DB_PASSWORD":  "s3cret!",
		"TENANTD_DB_NAME":      "tenantd_prod",
		"TENANTD_DB_SSLMODE":   "require",
		"TENANTD_DB_MAX_CONNS": "50",

		"TENANTD_REDIS_ADDR":     "redis.prod:6380",
		"TENANTD_REDIS_PASSWORD": "redis-pass",
		"TENANTD_REDIS_DB":       "3",

		"TENANTD_JWT_SECRET": "prod-jwt-secret-256-bits-long!!!",

		"TENANTD_SERVER_ADDR":          ":9090",
		"TENANTD_SERVER_READ_TIMEOUT":  "5s",
		"TENANTD_SERVER_WRITE_TIMEOUT": "15s",

		"TENANTD_ACME_DIRECTORY_URL": "https://acme-staging-v02.api.letsencrypt.org/directory",
		"TENANTD_ACME_EMAIL":         "ops@example.com",
		"TENANTD_ACME_CACHE_DIR":     "/data/certs",

		"TENANTD_PROVISIONER_WORKERS":        "8",
		"TENANTD_PROVISIONER_POLL_INTERVAL":  "250ms",
		"TENANTD_PROVISIONER_LEASE":          "10m",
		"TENANTD_PROVISIONER_ISSUE_TIMEOUT":  "90s",
		"TENANTD_PROVISIONER_MAX_ATTEMPTS":   "7",
		"TENANTD_PROVISIONER_BACKOFF_BASE":   "10s",
		"TENANTD_PROVISIONER_BACKOFF_CAP":    "5m",
		"TENANTD_PROVISIONER_DRAIN_TIMEOUT":  "45s",
		"TENANTD_PROVISIONER_SWEEP_INTERVAL": "30s",
		"TENANTD_PROVISIONER_RENEW_BEFORE":   "504h",
		"TENANTD_PROVISIONER_RENEW_ENABLED":  "false",

		"TENANTD_SLACK_BOT_TOKEN": "xoxb-test",
		"TENANTD_SLACK_CHANNEL":   "C012OPS",

		"TENANTD_SELF_HOSTED": "true",
	}

	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "db.prod.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "prod_user", cfg.Database.User)
	assert.Equal(t, "s3cret!", cfg.Database.Password)
	assert.Equal(t, "tenantd_prod", cfg.Database.DBName)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 50, cfg.Database.MaxConns)

	assert.Equal(t, "redis.prod:6380", cfg.Redis.Addr)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)

	assert.Equal(t, "https://acme-staging-v02.api.letsencrypt.org/directory", cfg.ACME.DirectoryURL)
	assert.Equal(t, "ops@example.com", cfg.ACME.Email)
	assert.Equal(t, "/data/certs", cfg.ACME.CacheDir)

	assert.Equal(t, 8, cfg.Provisioner.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Provisioner.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Provisioner.Lease)
	assert.Equal(t, 90*time.Second, cfg.Provisioner.IssueTimeout)
	assert.Equal(t, 7, cfg.Provisioner.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Provisioner.BackoffBase)
	assert.Equal(t, 5*time.Minute, cfg.Provisioner.BackoffCap)
	assert.Equal(t, 45*time.Second, cfg.Provisioner.DrainTimeout)
	assert.Equal(t, 30*time.Second, cfg.Provisioner.SweepInterval)
	assert.Equal(t, 504*time.Hour, cfg.Provisioner.RenewBefore)
	assert.False(t, cfg.Provisioner.RenewEnabled)

	assert.Equal(t, "xoxb-test", cfg.Slack.BotToken)
	assert.Equal(t, "C012OPS", cfg.Slack.Channel)

	assert.True(t, cfg.SelfHosted)
}

// ---------------------------------------------------------------------------
// DSN() output format
// ---------------------------------------------------------------------------

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "default dev values",
			cfg: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "tenantd",
				Password: "", DBName: "tenantd_dev", SSLMode: "disable",
			},
			want: "host=localhost port=5432 user=tenantd password= dbname=tenantd_dev sslmode=disable",
		},
		{
			name: "production values",
			cfg: DatabaseConfig{
				Host: "db.prod", Port: 5433, User: "admin",
				Password: "p@ss!", DBName: "tenantd_prod", SSLMode: "require",
			},
			want: "host=db.prod port=5433 user=admin password=p@ss! dbname=tenantd_prod sslmode=require",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

// ---------------------------------------------------------------------------
// validate() direct tests
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Parallel()

	// validBase returns a Config that passes validation.
	validBase := func() *Config {
		return &Config{
			Database: DatabaseConfig{Port: 5432, MaxConns: 25},
			JWT:      JWTConfig{Secret: "test-secret-that-is-at-least-32ch"},
			Server: ServerConfig{
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			},
			Provisioner: ProvisionerConfig{
				Workers:      4,
				MaxAttempts:  5,
				BackoffBase:  30 * time.Second,
				BackoffCap:   15 * time.Minute,
				DrainTimeout: 30 * time.Second,
			},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validBase().validate())
	})

	t.Run("empty JWT secret fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.Secret = ""
		assert.ErrorContains(t, c.validate(), "TENANTD_JWT_SECRET")
	})

	t.Run("JWT secret too short fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.Secret = "only-31-characters-long-secret!"
		assert.ErrorContains(t, c.validate(), "TENANTD_JWT_SECRET")
	})

	t.Run("port 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.Port = 0
		assert.ErrorContains(t, c.validate(), "TENANTD_DB_PORT")
	})

	t.Run("MaxConns 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.MaxConns = 0
		assert.ErrorContains(t, c.validate(), "TENANTD_DB_MAX_CONNS")
	})

	t.Run("workers 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Provisioner.Workers = 0
		assert.ErrorContains(t, c.validate(), "TENANTD_PROVISIONER_WORKERS")
	})

	t.Run("backoff cap below base fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Provisioner.BackoffCap = time.Second
		assert.ErrorContains(t, c.validate(), "TENANTD_PROVISIONER_BACKOFF_CAP")
	})

	t.Run("drain timeout 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Provisioner.DrainTimeout = 0
		assert.ErrorContains(t, c.validate(), "TENANTD_PROVISIONER_DRAIN_TIMEOUT")
	})

	t.Run("slack token without channel fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Slack.BotToken = "xoxb-test"
		assert.ErrorContains(t, c.validate(), "TENANTD_SLACK_CHANNEL")
	})
}

// ---------------------------------------------------------------------------
// Test helper
// ---------------------------------------------------------------------------

func strPtr(s string) *string {
	return &s
}
