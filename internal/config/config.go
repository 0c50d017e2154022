package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no config path is supplied.
const DefaultConfigPath = "config.yaml"

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`       // HMAC signing secret.
	ExpiryHours int    `yaml:"expiry-hours"` // Token lifetime in hours.
}

// Expiry returns the configured token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	hours := c.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8318".
}

// LogConfig holds log output settings.
type LogConfig struct {
	File       string `yaml:"file"`        // Log file path; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"` // Rotate after this many megabytes.
	MaxBackups int    `yaml:"max-backups"` // Rotated files to retain.
	Debug      bool   `yaml:"debug"`       // Enables debug-level logging.
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	Database struct {
		DSN string `yaml:"dsn"` // PostgreSQL or SQLite DSN.
	} `yaml:"database"`
	JWT JWTConfig `yaml:"jwt"`
	Log LogConfig `yaml:"log"`
	Admin struct {
		Username string `yaml:"username"` // Bootstrap admin login, created on first start.
		Password string `yaml:"password"` // Bootstrap admin password.
	} `yaml:"admin"`
}

// ResolveConfigPath normalizes a user-supplied config path.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultConfigPath
	}
	return filepath.Clean(trimmed)
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	resolved := ResolveConfigPath(path)
	data, errRead := os.ReadFile(resolved)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", resolved, errRead)
	}
	var cfg Config
	if errParse := yaml.Unmarshal(data, &cfg); errParse != nil {
		return nil, fmt.Errorf("config: parse %s: %w", resolved, errParse)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: %s: missing database.dsn", resolved)
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: %s: missing jwt.secret", resolved)
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8318"
	}
	return &cfg, nil
}
