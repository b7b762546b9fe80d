// Package config centralizes configuration for the onboarding automation.
// Values come from environment variables (optionally via a .env file loaded
// in main) with defaults applied per field; everything is validated on
// startup so misconfiguration fails fast instead of mid-batch.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Env      string `env:"ENV" default:"development"`
	Database DatabaseConfig
	Vault    VaultConfig
	Intake   IntakeConfig
	Audit    AuditConfig
	Ops      OpsConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds target-store connection settings. URL may be empty
// when Vault supplies the credentials instead.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the connection pool ceiling (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the number of connections kept warm (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime bounds how long one connection lives (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime closes idle connections after this long (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// VaultConfig holds credential-provider settings. When Addr is empty the
// database URL must be configured directly.
type VaultConfig struct {
	Addr       string `env:"VAULT_ADDR"`
	Token      string `env:"VAULT_TOKEN"`
	SecretPath string `env:"VAULT_SECRET_PATH"`
}

// Enabled reports whether Vault should be used for credential retrieval.
func (v VaultConfig) Enabled() bool { return v.Addr != "" }

// IntakeConfig holds batch-file intake settings.
type IntakeConfig struct {
	// Root is the directory holding the per-product inbox/processing/
	// processed/failed trees (default: products)
	Root string `env:"INTAKE_ROOT" default:"products"`

	// ScanInterval re-scans inboxes on a timer; zero means a single scan
	// per invocation, the way the job runs under cron (default: 0)
	ScanInterval time.Duration `env:"INTAKE_SCAN_INTERVAL" default:"0s"`

	// AllowedSubmitters restricts meta.submitted_by in production.
	// Comma-separated; empty means no restriction.
	AllowedSubmitters []string `env:"INTAKE_ALLOWED_SUBMITTERS"`
}

// AuditConfig holds audit-trail settings.
type AuditConfig struct {
	// ExportLimit caps the rows in one CSV export (default: 10000)
	ExportLimit int `env:"AUDIT_EXPORT_LIMIT" default:"10000"`
}

// OpsConfig holds settings for the read-only operations HTTP server.
type OpsConfig struct {
	// Enabled starts the ops server alongside the intake loop (default: false)
	Enabled bool `env:"OPS_ENABLED" default:"false"`

	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"OPS_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"OPS_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"OPS_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"OPS_WRITE_TIMEOUT" default:"30s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"OPS_SHUTDOWN_TIMEOUT" default:"10s"`
}

// Addr returns the ops listen address in host:port form.
func (c OpsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log output format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Validate checks the configuration for correctness, collecting every
// failure so operators see the full list at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" && !c.Vault.Enabled() {
		errs = append(errs, "either DATABASE_URL or VAULT_ADDR must be set")
	}
	if c.Vault.Enabled() {
		if c.Vault.Token == "" {
			errs = append(errs, "VAULT_TOKEN is required when VAULT_ADDR is set")
		}
		if c.Vault.SecretPath == "" {
			errs = append(errs, "VAULT_SECRET_PATH is required when VAULT_ADDR is set")
		}
	}

	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Intake.Root == "" {
		errs = append(errs, "INTAKE_ROOT must not be empty")
	}
	if c.Intake.ScanInterval < 0 {
		errs = append(errs, "INTAKE_SCAN_INTERVAL must be non-negative")
	}

	if c.Audit.ExportLimit <= 0 {
		errs = append(errs, "AUDIT_EXPORT_LIMIT must be positive")
	}

	if c.Ops.Enabled && (c.Ops.Port <= 0 || c.Ops.Port > 65535) {
		errs = append(errs, fmt.Sprintf("OPS_PORT (%d) must be between 1 and 65535", c.Ops.Port))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String renders the config for startup logging with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Env: %q, ", c.Env))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Vault: {Addr: %q, Token: [MASKED], SecretPath: %q}, ",
		c.Vault.Addr, c.Vault.SecretPath))
	b.WriteString(fmt.Sprintf("Intake: {Root: %q, ScanInterval: %s, AllowedSubmitters: %d}, ",
		c.Intake.Root, c.Intake.ScanInterval, len(c.Intake.AllowedSubmitters)))
	b.WriteString(fmt.Sprintf("Audit: {ExportLimit: %d}, ", c.Audit.ExportLimit))
	b.WriteString(fmt.Sprintf("Ops: {Enabled: %v, Addr: %q}, ", c.Ops.Enabled, c.Ops.Addr()))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
