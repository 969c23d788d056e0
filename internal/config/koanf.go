package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/review-service/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             "",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ApplySchema:     true,
		},
		Auth: AuthConfig{
			AccessTTL:  24 * time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
			Issuer:     "review-service",
			CodeLength: 8,
		},
		Mail: MailConfig{
			Mode:     MailModeLog,
			From:     "noreply@review-service.local",
			SMTPPort: 587,
			Timeout:  10 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			CORSOrigins:           []string{"*"},
			AuthRateLimitRequests: 20,
			AuthRateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads defaults, then the optional config file, then environment
// variables, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to config keys.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"environment": "environment",

	"port":                    "server.port",
	"http_port":               "server.port",
	"server_read_timeout":     "server.read_timeout",
	"server_write_timeout":    "server.write_timeout",
	"server_idle_timeout":     "server.idle_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",

	"database_url":                "database.url",
	"review_service_database_url": "database.url",
	"db_max_open_conns":           "database.max_open_conns",
	"db_max_idle_conns":           "database.max_idle_conns",
	"db_conn_max_lifetime":        "database.conn_max_lifetime",
	"db_apply_schema":             "database.apply_schema",

	"jwt_secret":               "auth.jwt_secret",
	"jwt_secret_key":           "auth.jwt_secret",
	"jwt_access_ttl":           "auth.access_ttl",
	"jwt_refresh_ttl":          "auth.refresh_ttl",
	"jwt_issuer":               "auth.issuer",
	"confirmation_code_length": "auth.code_length",

	"mail_mode":     "mail.mode",
	"mail_from":     "mail.from",
	"smtp_host":     "mail.smtp_host",
	"smtp_port":     "mail.smtp_port",
	"smtp_username": "mail.smtp_username",
	"smtp_password": "mail.smtp_password",
	"mail_timeout":  "mail.timeout",

	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",

	"cors_origins":             "security.cors_origins",
	"auth_rate_limit_requests": "security.auth_rate_limit_requests",
	"auth_rate_limit_window":   "security.auth_rate_limit_window",
	"disable_rate_limit":       "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
