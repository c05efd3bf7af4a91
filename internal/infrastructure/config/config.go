package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Shelfwise Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Library     LibraryConfig     `yaml:"library"`
	Database    DatabaseConfig    `yaml:"database"`
	Circulation CirculationConfig `yaml:"circulation"`
	Retry       RetryConfig       `yaml:"retry"`
	Auth        AuthConfig        `yaml:"auth"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Notify      NotifyConfig      `yaml:"notify"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LibraryConfig contains branch-specific information.
type LibraryConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	// Path is the filesystem path to the SQLite database file.
	Path string `yaml:"path"`

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the maximum time a single statement waits for a
	// database lock, in seconds.
	BusyTimeout int `yaml:"busy_timeout"`

	// PoolSize is the number of connections the pool hands out.
	// The desktop front end shares these across its worker threads.
	PoolSize int `yaml:"pool_size"`
}

// CirculationConfig contains lending policy settings.
type CirculationConfig struct {
	// LoanPeriodDays is how long a member may keep a book before it
	// counts as overdue.
	LoanPeriodDays int `yaml:"loan_period_days"`

	// PageSize is the number of rows returned per page by search queries.
	PageSize int `yaml:"page_size"`
}

// RetryConfig controls the retry loop applied to operations that hit
// transient SQLITE_BUSY / SQLITE_LOCKED errors.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelayMS is the first backoff delay in milliseconds.
	// The delay doubles on each subsequent attempt.
	BaseDelayMS int `yaml:"base_delay_ms"`
}

// AuthConfig contains account security settings.
type AuthConfig struct {
	// AdminUsername is the well-known account seeded on first run.
	AdminUsername string `yaml:"admin_username"`

	// MaxLoginAttempts is the failed-verification count at which an
	// account is treated as locked.
	MaxLoginAttempts int `yaml:"max_login_attempts"`
}

// SMTPConfig contains outgoing mail settings for overdue notices.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	StartTLS bool   `yaml:"starttls"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NotifyConfig contains overdue-notification scheduling settings.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for the overdue scan.
	// Default: "0 8 * * *" (daily at 08:00).
	Schedule string `yaml:"schedule"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHELFWISE_SECTION_KEY
// For example: SHELFWISE_DATABASE_PATH, SHELFWISE_SMTP_PASSWORD
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Name:     "Shelfwise",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/shelfwise.db",
			WALMode:     true,
			BusyTimeout: 5,
			PoolSize:    5,
		},
		Circulation: CirculationConfig{
			LoanPeriodDays: 14,
			PageSize:       10,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMS: 500,
		},
		Auth: AuthConfig{
			AdminUsername:    "admin",
			MaxLoginAttempts: 5,
		},
		SMTP: SMTPConfig{
			Host:     "localhost",
			Port:     587,
			StartTLS: true,
			From:     "library@example.com",
		},
		Notify: NotifyConfig{
			Enabled:  false,
			Schedule: "0 8 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHELFWISE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SHELFWISE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SHELFWISE_DATABASE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.PoolSize = n
		}
	}

	// Circulation
	if v := os.Getenv("SHELFWISE_LOAN_PERIOD_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Circulation.LoanPeriodDays = n
		}
	}

	// SMTP credentials (never commit these to the config file)
	if v := os.Getenv("SHELFWISE_SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SHELFWISE_SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}

	// Logging
	if v := os.Getenv("SHELFWISE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, "database.pool_size must be at least 1")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	// Circulation validation
	if c.Circulation.LoanPeriodDays < 1 {
		errs = append(errs, "circulation.loan_period_days must be at least 1")
	}
	if c.Circulation.PageSize < 1 || c.Circulation.PageSize > 500 {
		errs = append(errs, "circulation.page_size must be between 1 and 500")
	}

	// Retry validation
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelayMS < 0 {
		errs = append(errs, "retry.base_delay_ms must not be negative")
	}

	// Library validation
	if c.Library.Timezone != "" {
		if _, err := time.LoadLocation(c.Library.Timezone); err != nil {
			errs = append(errs, "library.timezone is not a recognised timezone")
		}
	}

	// Auth validation
	if c.Auth.AdminUsername == "" {
		errs = append(errs, "auth.admin_username is required")
	}
	if c.Auth.MaxLoginAttempts < 1 {
		errs = append(errs, "auth.max_login_attempts must be at least 1")
	}

	// SMTP is only required when the overdue scan is enabled
	if c.Notify.Enabled {
		if c.SMTP.Host == "" {
			errs = append(errs, "smtp.host is required when notify.enabled is true")
		}
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			errs = append(errs, "smtp.port must be between 1 and 65535")
		}
		if c.SMTP.From == "" {
			errs = append(errs, "smtp.from is required when notify.enabled is true")
		}
		if c.Notify.Schedule == "" {
			errs = append(errs, "notify.schedule is required when notify.enabled is true")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the library's timezone, used when rendering dates in
// member-facing text. Storage timestamps stay UTC. Validate reports bad
// values at startup; here an unloadable zone falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Library.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RetryBaseDelay returns the first backoff delay as a Duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

// LoanPeriod returns the loan period as a Duration.
func (c *Config) LoanPeriod() time.Duration {
	return time.Duration(c.Circulation.LoanPeriodDays) * 24 * time.Hour
}
