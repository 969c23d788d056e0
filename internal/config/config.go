// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Mail delivery modes.
const (
	MailModeLog  = "log"
	MailModeSMTP = "smtp"
)

// devJWTSecret is used only in development when no secret is configured.
const devJWTSecret = "your-very-secret-and-long-enough-key-for-hmac256-dev-only"

// minJWTSecretLength mirrors auth.MinSecretLength.
const minJWTSecretLength = 32

// Config is the complete service configuration.
type Config struct {
	Environment string         `koanf:"environment"`
	Server      ServerConfig   `koanf:"server"`
	Database    DatabaseConfig `koanf:"database"`
	Auth        AuthConfig     `koanf:"auth"`
	Mail        MailConfig     `koanf:"mail"`
	API         APIConfig      `koanf:"api"`
	Security    SecurityConfig `koanf:"security"`
	Logging     LoggingConfig  `koanf:"logging"`

	// UsingDevSecret is set by Validate when the development fallback
	// JWT secret was applied.
	UsingDevSecret bool `koanf:"-"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures PostgreSQL. An empty URL selects the in-memory
// stores, which is only allowed in development.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ApplySchema     bool          `koanf:"apply_schema"`
}

type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	Issuer     string        `koanf:"issuer"`
	CodeLength int           `koanf:"code_length"`
}

type MailConfig struct {
	Mode         string        `koanf:"mode"`
	From         string        `koanf:"from"`
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUsername string        `koanf:"smtp_username"`
	SMTPPassword string        `koanf:"smtp_password"`
	Timeout      time.Duration `koanf:"timeout"`
}

type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig covers CORS and the rate limit on the auth endpoints.
type SecurityConfig struct {
	CORSOrigins           []string      `koanf:"cors_origins"`
	AuthRateLimitRequests int           `koanf:"auth_rate_limit_requests"`
	AuthRateLimitWindow   time.Duration `koanf:"auth_rate_limit_window"`
	RateLimitDisabled     bool          `koanf:"rate_limit_disabled"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// IsProduction reports whether the service runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate checks the loaded configuration and fills development fallbacks.
func (c *Config) Validate() error {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment)
	}

	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateMail(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" && c.IsProduction() {
		return errors.New("database.url is required in production")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("database connection limits cannot be negative")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("auth.jwt_secret is required in production")
		}
		c.Auth.JWTSecret = devJWTSecret
		c.UsingDevSecret = true
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes in production", minJWTSecretLength)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("auth token lifetimes must be positive")
	}
	if c.Auth.RefreshTTL < c.Auth.AccessTTL {
		return errors.New("auth.refresh_ttl must not be shorter than auth.access_ttl")
	}
	if c.Auth.CodeLength < 6 || c.Auth.CodeLength > 64 {
		return fmt.Errorf("auth.code_length must be between 6 and 64, got %d", c.Auth.CodeLength)
	}
	return nil
}

func (c *Config) validateMail() error {
	c.Mail.Mode = strings.ToLower(c.Mail.Mode)
	switch c.Mail.Mode {
	case MailModeLog:
	case MailModeSMTP:
		if c.Mail.SMTPHost == "" {
			return errors.New("mail.smtp_host is required when mail.mode is smtp")
		}
		if c.Mail.SMTPPort < 1 || c.Mail.SMTPPort > 65535 {
			return fmt.Errorf("mail.smtp_port must be between 1 and 65535, got %d", c.Mail.SMTPPort)
		}
	default:
		return fmt.Errorf("mail.mode must be %q or %q, got %q", MailModeLog, MailModeSMTP, c.Mail.Mode)
	}
	if c.Mail.From == "" {
		return errors.New("mail.from is required")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 {
		return errors.New("api.default_page_size must be positive")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return errors.New("api.max_page_size must not be smaller than api.default_page_size")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.AuthRateLimitRequests < 1 || c.Security.AuthRateLimitWindow <= 0 {
		return errors.New("security auth rate limit must be positive unless disabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
