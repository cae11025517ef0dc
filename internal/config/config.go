// Package config provides configuration management for the ATS sync service.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, MERGE_API_KEY)
// 3. Default values
//
// Import Path: hireguard.io/atssync/internal/config
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Security   SecurityConfig   `mapstructure:"security"`
	River      RiverConfig      `mapstructure:"river"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// WebhookTimeout bounds the whole processing of one webhook delivery.
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	// MaxWebhookBytes caps the raw webhook body read before verification.
	MaxWebhookBytes int64 `mapstructure:"max_webhook_bytes"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	// Pool configuration (shared by the store and River)
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// MergeConfig configures the upstream ATS aggregation provider.
type MergeConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	IntegrationsBaseURL string        `mapstructure:"integrations_base_url"`
	APIKey              string        `mapstructure:"api_key"`
	WebhookSecret       string        `mapstructure:"webhook_secret"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	PageSize            int           `mapstructure:"page_size"`
}

// SecurityConfig contains security-related settings.
type SecurityConfig struct {
	// EncryptionKey is a hex-encoded 32-byte key for account tokens at rest.
	EncryptionKey      string   `mapstructure:"encryption_key"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
	JWTIssuer          string   `mapstructure:"jwt_issuer"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// JWTVerificationKeys are previous signing keys still accepted during
	// key rotation.
	JWTVerificationKeys []string `mapstructure:"jwt_verification_keys"`
}

// RiverConfig contains River Queue settings for deferred application re-sync.
type RiverConfig struct {
	Enabled                     bool          `mapstructure:"enabled"`
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
	ApplicationRetryDelay       time.Duration `mapstructure:"application_retry_delay"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	BackfillPoolSize int `mapstructure:"backfill_pool_size"`
}

// ComplianceConfig points at an optional jurisdiction catalog override.
type ComplianceConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Nested keys map to env vars by replacing "." with "_": merge.api_key → MERGE_API_KEY.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/atssync")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Merge.APIKey == "" {
		logBootstrapWarn("merge.api_key is empty; upstream fetches will be rejected (set MERGE_API_KEY)")
	}
	if cfg.Merge.WebhookSecret == "" {
		logBootstrapWarn("merge.webhook_secret is empty; webhook signatures will NOT be verified (set MERGE_WEBHOOK_SECRET)")
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	key, err := hex.DecodeString(c.Security.EncryptionKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("security.encryption_key must be 64 hex characters (32 bytes)")
	}
	if len(c.Security.JWTSigningKey) < 32 {
		return fmt.Errorf("security.jwt_signing_key must be at least 32 characters")
	}
	if c.Merge.RequestTimeout <= 0 {
		return fmt.Errorf("merge.request_timeout must be positive")
	}
	if c.Merge.PageSize < 1 || c.Merge.PageSize > 100 {
		return fmt.Errorf("merge.page_size must be between 1 and 100, got %d", c.Merge.PageSize)
	}
	if c.Merge.BaseURL == "" {
		return fmt.Errorf("merge.base_url must not be empty")
	}
	return nil
}

// ensureSecrets auto-generates missing local secrets so a dev instance boots.
// Generated values do not survive restarts, which invalidates stored account
// tokens; production sets them explicitly.
func (c *Config) ensureSecrets() error {
	if c.Security.JWTSigningKey == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate jwt signing key: %w", err)
		}
		c.Security.JWTSigningKey = secret
		logBootstrapWarn(
			"auto-generated jwt_signing_key; set SECURITY_JWT_SIGNING_KEY env var for persistence",
			zap.Int("length", len(secret)),
		)
	}
	if c.Security.EncryptionKey == "" {
		key, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate encryption key: %w", err)
		}
		c.Security.EncryptionKey = key
		logBootstrapWarn(
			"auto-generated encryption_key; stored account tokens become unreadable after restart (set SECURITY_ENCRYPTION_KEY)",
			zap.Int("length", len(key)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.webhook_timeout", "45s")
	v.SetDefault("server.max_webhook_bytes", 5<<20)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "atssync")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "atssync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Merge
	v.SetDefault("merge.base_url", "https://api.merge.dev/api/ats/v1")
	v.SetDefault("merge.integrations_base_url", "https://api.merge.dev/api/integrations")
	v.SetDefault("merge.api_key", "")
	v.SetDefault("merge.webhook_secret", "")
	v.SetDefault("merge.request_timeout", "15s")
	v.SetDefault("merge.page_size", 100)

	// Security
	v.SetDefault("security.jwt_issuer", "atssync")
	v.SetDefault("security.cors_allowed_origins", []string{})
	v.SetDefault("security.jwt_verification_keys", []string{})

	// River
	v.SetDefault("river.enabled", true)
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")
	v.SetDefault("river.application_retry_delay", "30s")

	// Worker
	v.SetDefault("worker.backfill_pool_size", 8)

	// Compliance
	v.SetDefault("compliance.catalog_path", "")
}
