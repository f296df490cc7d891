package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/mailer?sslmode=disable"
  max_open_conns: 25

storage:
  type: "postgres"

mail:
  transport: "ses"
  from_name: "Acme Insurance"
  from_email: "news@acme.test"
  base_url: "https://acme.test"
  unsubscribe_secret: "9f2c4e7a1b3d5f8e0a6c2b4d7e9f1a3c"
  max_reported_errors: 5
  ses:
    region: "eu-west-1"

processor:
  num_workers: 4
  queue_size: 10
  lock_ttl_seconds: 120
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/mailer?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "ses", cfg.Mail.Transport)
	assert.Equal(t, "Acme Insurance", cfg.Mail.FromName)
	assert.Equal(t, 5, cfg.Mail.MaxReportedErrors)
	assert.Equal(t, "eu-west-1", cfg.Mail.SES.Region)
	assert.Equal(t, 4, cfg.Processor.NumWorkers)
	assert.Equal(t, 120, int(cfg.Processor.LockTTL().Seconds()))
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "smtp", cfg.Mail.Transport)
	assert.Equal(t, "smtp.gmail.com", cfg.Mail.SMTP.Host)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.Equal(t, 20, cfg.Mail.MaxReportedErrors)
	assert.Equal(t, 2, cfg.Processor.NumWorkers)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	configPath := writeConfig(t, `
mail:
  from_email: "file@acme.test"
`)

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SMTP_SERVER", "smtp.env.test")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USERNAME", "user")
	t.Setenv("SMTP_PASSWORD", "pass")
	t.Setenv("FROM_EMAIL", "env@acme.test")
	t.Setenv("SECRET_KEY", "env-secret-env-secret-env-secret-0")
	t.Setenv("MAIL_TRANSPORT", "log")
	t.Setenv("PORT", "9999")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "smtp.env.test", cfg.Mail.SMTP.Host)
	assert.Equal(t, 2525, cfg.Mail.SMTP.Port)
	assert.Equal(t, "env@acme.test", cfg.Mail.FromEmail)
	assert.Equal(t, "env-secret-env-secret-env-secret-0", cfg.Mail.UnsubscribeSecret)
	assert.Equal(t, "log", cfg.Mail.Transport)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_BadPort(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-number")
	_, err := LoadFromEnv(writeConfig(t, "{}\n"))
	assert.Error(t, err)
}

func TestLoadFromEnv_NoDatabaseUsesMemory(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := LoadFromEnv(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  type: "memory"
mail:
  from_email: "news@acme.test"
  unsubscribe_secret: "0123456789abcdef0123456789abcdef"
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Mail.Transport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg.Mail.Transport = "log"
	cfg.Mail.UnsubscribeSecret = ""
	assert.Error(t, cfg.Validate())

	cfg.Mail.UnsubscribeSecret = "change-me"
	assert.Error(t, cfg.Validate(), "short secrets make forgeable unsubscribe tokens")

	cfg.Mail.UnsubscribeSecret = "0123456789abcdef0123456789abcdef"
	cfg.Storage.Type = "postgres"
	assert.Error(t, cfg.Validate(), "postgres storage needs a database url")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRateLimitConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
mail:
  rate_limit:
    per_minute: 30
    daily: 500
`))
	require.NoError(t, err)
	assert.True(t, cfg.Mail.RateLimit.Enabled())
	assert.Equal(t, 30, cfg.Mail.RateLimit.PerMinute)
	assert.Equal(t, 500, cfg.Mail.RateLimit.Daily)
	assert.False(t, RateLimit{}.Enabled())
}
