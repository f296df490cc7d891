package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Mail      MailConfig      `yaml:"mail"`
	Processor ProcessorConfig `yaml:"processor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds Redis settings. An empty Addr disables Redis and the
// send lock falls back to Postgres advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Type string `yaml:"type" validate:"oneof=postgres memory"`
}

// MailConfig holds sender identity, unsubscribe signing and transport settings
type MailConfig struct {
	Transport         string     `yaml:"transport" validate:"oneof=smtp ses log"`
	FromName          string     `yaml:"from_name"`
	FromEmail         string     `yaml:"from_email" validate:"required,email"`
	ReplyTo           string     `yaml:"reply_to" validate:"omitempty,email"`
	BaseURL           string     `yaml:"base_url" validate:"required,url"`
	UnsubscribeSecret string     `yaml:"unsubscribe_secret" validate:"required,min=32"`
	MaxReportedErrors int        `yaml:"max_reported_errors" validate:"min=1"`
	SMTP              SMTPConfig `yaml:"smtp"`
	SES               SESConfig  `yaml:"ses"`
	RateLimit         RateLimit  `yaml:"rate_limit"`
}

// RateLimit caps deliveries through the configured transport. Zero leaves a
// window unlimited. Enforced only when Redis is configured.
type RateLimit struct {
	PerSecond int `yaml:"per_second" validate:"min=0"`
	PerMinute int `yaml:"per_minute" validate:"min=0"`
	Daily     int `yaml:"daily" validate:"min=0"`
}

// Enabled reports whether any window is limited.
func (r RateLimit) Enabled() bool {
	return r.PerSecond > 0 || r.PerMinute > 0 || r.Daily > 0
}

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// AllowPlaintextAuth lets credentials go to a relay that does not
	// offer STARTTLS. Off by default.
	AllowPlaintextAuth bool `yaml:"allow_plaintext_auth"`
}

// Timeout returns the configured timeout as a duration
func (c SMTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ProcessorConfig holds background campaign processor settings
type ProcessorConfig struct {
	NumWorkers     int `yaml:"num_workers" validate:"min=1"`
	QueueSize      int `yaml:"queue_size" validate:"min=1"`
	LockTTLSeconds int `yaml:"lock_ttl_seconds" validate:"min=1"`
}

// LockTTL returns the send lock TTL as a duration
func (c ProcessorConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Environment string `yaml:"environment"`
	Level       string `yaml:"level"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "postgres"
	}
	if cfg.Mail.Transport == "" {
		cfg.Mail.Transport = "smtp"
	}
	if cfg.Mail.FromName == "" {
		cfg.Mail.FromName = "InsurancePro"
	}
	if cfg.Mail.BaseURL == "" {
		cfg.Mail.BaseURL = "http://localhost:8080"
	}
	if cfg.Mail.MaxReportedErrors == 0 {
		cfg.Mail.MaxReportedErrors = 20
	}
	if cfg.Mail.SMTP.Host == "" {
		cfg.Mail.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.Mail.SMTP.Port == 0 {
		cfg.Mail.SMTP.Port = 587
	}
	if cfg.Mail.SMTP.TimeoutSeconds == 0 {
		cfg.Mail.SMTP.TimeoutSeconds = 30
	}
	if cfg.Mail.SES.Region == "" {
		cfg.Mail.SES.Region = "us-west-2"
	}
	if cfg.Processor.NumWorkers == 0 {
		cfg.Processor.NumWorkers = 2
	}
	if cfg.Processor.QueueSize == 0 {
		cfg.Processor.QueueSize = 100
	}
	if cfg.Processor.LockTTLSeconds == 0 {
		cfg.Processor.LockTTLSeconds = 3600
	}
	if cfg.Logging.Environment == "" {
		cfg.Logging.Environment = "production"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MAIL_TRANSPORT"); v != "" {
		cfg.Mail.Transport = v
	}
	if v := os.Getenv("SMTP_SERVER"); v != "" {
		cfg.Mail.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SMTP_PORT: %w", err)
		}
		cfg.Mail.SMTP.Port = port
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Mail.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Mail.SMTP.Password = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.Mail.FromEmail = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.Mail.UnsubscribeSecret = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Mail.BaseURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mail.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mail.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Mail.SES.Region = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	// With no database configured the service runs on in-memory storage.
	if cfg.Storage.Type == "postgres" && cfg.Database.URL == "" {
		cfg.Storage.Type = "memory"
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks the fully resolved configuration.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Storage.Type == "postgres" && cfg.Database.URL == "" {
		return fmt.Errorf("invalid config: database.url is required for postgres storage")
	}
	return nil
}
