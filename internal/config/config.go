// Package config loads rgpipe.yaml, the per-project settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// FileName is the config file looked up in the working directory.
const FileName = "rgpipe.yaml"

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
}

type Config struct {
	Connection ConnectionConfig `yaml:"connection"`

	// Schema is the PostgreSQL schema holding the tables.
	// Empty means "<username>_retinal".
	Schema string `yaml:"schema"`

	// Variant is "flat" or "grouped".
	Variant string `yaml:"variant"`

	// SQLite, when set, is the database file used instead of PostgreSQL.
	SQLite string `yaml:"sqlite"`

	Timeout string `yaml:"timeout"`
}

// Load reads the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %v: %w", path, err, rgpipe.ErrInvalidConfig)
	}
	return &cfg, nil
}

// ParsedTimeout returns Timeout as a duration, or zero if unset.
func (c *Config) ParsedTimeout() (time.Duration, error) {
	if c == nil || c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q in %s: %w", c.Timeout, FileName, rgpipe.ErrInvalidConfig)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout %q in %s cannot be negative: %w", c.Timeout, FileName, rgpipe.ErrInvalidConfig)
	}
	return d, nil
}

// ParsedVariant returns the configured variant, or zero if unset.
func (c *Config) ParsedVariant() (rgpipe.Variant, error) {
	if c == nil || c.Variant == "" {
		return 0, nil
	}
	return rgpipe.ParseVariant(c.Variant)
}
