// File path: internal/data/orchestrator/config.go
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nicodishanthj/planbuilder/internal/mongostore"
	"github.com/nicodishanthj/planbuilder/internal/sqlite"
)

// Supported storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config selects and configures the document backend.
type Config struct {
	Driver     string            `yaml:"driver"`
	Collection string            `yaml:"collection"`
	MemoryPath string            `yaml:"memory_path"`
	SQLite     sqlite.Config     `yaml:"sqlite"`
	Mongo      mongostore.Config `yaml:"mongo"`
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		Driver:     DriverSQLite,
		Collection: "plans",
		MemoryPath: filepath.Join("data", "plans.jsonl"),
		SQLite:     sqlite.Config{Path: sqlite.DefaultPath},
		Mongo:      mongostore.Config{Database: mongostore.DefaultDatabase},
	}
}

// LoadConfig builds a Config from PLANS_CONFIG_FILE overlaid with the
// environment. The sqlite and mongo sections are filled by their own loaders.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("PLANS_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read plans config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse plans config: %w", err)
		}
	}

	sqliteCfg, err := sqlite.LoadConfig()
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(os.Getenv("SQLITE_PATH")) == "" && strings.TrimSpace(cfg.SQLite.Path) != "" {
		sqliteCfg.Path = cfg.SQLite.Path
	}
	cfg.SQLite = sqliteCfg

	mongoCfg, err := mongostore.LoadConfig()
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(os.Getenv("DB_NAME")) == "" && strings.TrimSpace(cfg.Mongo.Database) != "" {
		mongoCfg.Database = cfg.Mongo.Database
	}
	cfg.Mongo = cfg.Mongo.Merge(mongoCfg)

	if value := strings.TrimSpace(os.Getenv("PLANS_STORE_DRIVER")); value != "" {
		cfg.Driver = value
	}
	if value := strings.TrimSpace(os.Getenv("PLANS_COLLECTION")); value != "" {
		cfg.Collection = value
	}
	if value := strings.TrimSpace(os.Getenv("PLANS_MEMORY_PATH")); value != "" {
		cfg.MemoryPath = value
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		if strings.TrimSpace(cfg.Mongo.URL) != "" {
			cfg.Driver = DriverMongo
		} else {
			cfg.Driver = defaults.Driver
		}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		cfg.Collection = defaults.Collection
	}
	if strings.TrimSpace(cfg.MemoryPath) == "" {
		cfg.MemoryPath = defaults.MemoryPath
	}
	if strings.TrimSpace(cfg.SQLite.Path) == "" {
		cfg.SQLite.Path = defaults.SQLite.Path
	}
	if strings.TrimSpace(cfg.Mongo.Database) == "" {
		cfg.Mongo.Database = defaults.Mongo.Database
	}
	return cfg
}

func (c Config) validate() error {
	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return fmt.Errorf("sqlite path required")
		}
	case DriverMongo:
		if strings.TrimSpace(c.Mongo.URL) == "" {
			return fmt.Errorf("mongo driver requires MONGO_URL")
		}
	case DriverMemory:
		if strings.TrimSpace(c.MemoryPath) == "" {
			return fmt.Errorf("memory path required")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("collection name required")
	}
	return nil
}
