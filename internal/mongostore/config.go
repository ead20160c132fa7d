// File path: internal/mongostore/config.go
package mongostore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDatabase is used when DB_NAME is unset.
const DefaultDatabase = "planbuilder"

// Config describes how to reach the MongoDB deployment.
type Config struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`

	ConnectTimeout       time.Duration `yaml:"-"`
	ConnectTimeoutString string        `yaml:"connect_timeout"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.URL) != "" {
		result.URL = strings.TrimSpace(override.URL)
	}
	if strings.TrimSpace(override.Database) != "" {
		result.Database = strings.TrimSpace(override.Database)
	}
	if override.ConnectTimeout > 0 {
		result.ConnectTimeout = override.ConnectTimeout
	}
	if strings.TrimSpace(override.ConnectTimeoutString) != "" {
		result.ConnectTimeoutString = strings.TrimSpace(override.ConnectTimeoutString)
	}
	return result
}

// LoadConfig reads MONGO_CONFIG_FILE (YAML) and overlays MONGO_URL, DB_NAME
// and MONGO_CONNECT_TIMEOUT.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("MONGO_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read mongo config: %w", err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse mongo config: %w", err)
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg := Config{
		URL:      os.Getenv("MONGO_URL"),
		Database: os.Getenv("DB_NAME"),
	}
	if timeout := strings.TrimSpace(os.Getenv("MONGO_CONNECT_TIMEOUT")); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse MONGO_CONNECT_TIMEOUT: %w", err)
		}
		envCfg.ConnectTimeout = parsed
	}
	cfg = cfg.Merge(envCfg)
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	c.URL = strings.TrimSpace(c.URL)
	if strings.TrimSpace(c.Database) == "" {
		c.Database = DefaultDatabase
	}
	if c.ConnectTimeout <= 0 && c.ConnectTimeoutString != "" {
		parsed, err := time.ParseDuration(c.ConnectTimeoutString)
		if err != nil {
			return fmt.Errorf("parse connect_timeout: %w", err)
		}
		c.ConnectTimeout = parsed
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return nil
}
