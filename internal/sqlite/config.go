// File path: internal/sqlite/config.go
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "data/plans.db"

// Duration is a time.Duration written as "5s" or "15m" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config controls the document database and its connection pool.
type Config struct {
	Path string `yaml:"path"`

	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`

	// BusyTimeout bounds how long a writer waits for the database lock.
	BusyTimeout Duration `yaml:"busy_timeout"`
	// JournalMode is applied when the store opens. Plans default to WAL so
	// that list and get requests are not blocked by writers.
	JournalMode string `yaml:"journal_mode"`
	// TxLock is the BEGIN mode of update transactions: deferred, immediate
	// or exclusive.
	TxLock string `yaml:"tx_lock"`
}

var (
	journalModes = map[string]bool{"wal": true, "delete": true, "truncate": true, "persist": true, "memory": true}
	txLockModes  = map[string]bool{"deferred": true, "immediate": true, "exclusive": true}
)

func (c Config) Merge(override Config) Config {
	result := c
	if path := strings.TrimSpace(override.Path); path != "" {
		result.Path = path
	}
	if override.MaxOpenConns > 0 {
		result.MaxOpenConns = override.MaxOpenConns
	}
	if override.MaxIdleConns > 0 {
		result.MaxIdleConns = override.MaxIdleConns
	}
	if override.ConnMaxLifetime > 0 {
		result.ConnMaxLifetime = override.ConnMaxLifetime
	}
	if override.ConnMaxIdleTime > 0 {
		result.ConnMaxIdleTime = override.ConnMaxIdleTime
	}
	if override.BusyTimeout > 0 {
		result.BusyTimeout = override.BusyTimeout
	}
	if mode := strings.TrimSpace(override.JournalMode); mode != "" {
		result.JournalMode = mode
	}
	if lock := strings.TrimSpace(override.TxLock); lock != "" {
		result.TxLock = lock
	}
	return result
}

// LoadConfig builds a Config from SQLITE_CONFIG_FILE (YAML) overlaid with the
// SQLITE_* environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("SQLITE_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = DefaultPath
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 8
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = Duration(15 * time.Minute)
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = Duration(5 * time.Minute)
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = Duration(5 * time.Second)
	}
	c.JournalMode = strings.ToLower(strings.TrimSpace(c.JournalMode))
	if c.JournalMode == "" {
		c.JournalMode = "wal"
	}
	c.TxLock = strings.ToLower(strings.TrimSpace(c.TxLock))
	if c.TxLock == "" {
		c.TxLock = "immediate"
	}
}

func (c Config) validate() error {
	if !journalModes[c.JournalMode] {
		return fmt.Errorf("unsupported sqlite journal_mode %q", c.JournalMode)
	}
	if !txLockModes[c.TxLock] {
		return fmt.Errorf("unsupported sqlite tx_lock %q", c.TxLock)
	}
	return nil
}

// dsn renders the modernc connection string. busy_timeout is set per
// connection; _txlock makes read-then-write transactions take the write lock
// at BEGIN so they wait instead of failing on a stale snapshot.
func (c Config) dsn(abs string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=%s",
		abs, time.Duration(c.BusyTimeout).Milliseconds(), c.TxLock)
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read sqlite config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse sqlite config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{
		Path:        strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		JournalMode: strings.TrimSpace(os.Getenv("SQLITE_JOURNAL_MODE")),
		TxLock:      strings.TrimSpace(os.Getenv("SQLITE_TX_LOCK")),
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"SQLITE_MAX_OPEN_CONNS", &cfg.MaxOpenConns},
		{"SQLITE_MAX_IDLE_CONNS", &cfg.MaxIdleConns},
	}
	for _, field := range ints {
		raw := strings.TrimSpace(os.Getenv(field.name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", field.name, err)
		}
		*field.dst = value
	}
	durations := []struct {
		name string
		dst  *Duration
	}{
		{"SQLITE_CONN_MAX_LIFETIME", &cfg.ConnMaxLifetime},
		{"SQLITE_CONN_MAX_IDLE_TIME", &cfg.ConnMaxIdleTime},
		{"SQLITE_BUSY_TIMEOUT", &cfg.BusyTimeout},
	}
	for _, field := range durations {
		raw := strings.TrimSpace(os.Getenv(field.name))
		if raw == "" {
			continue
		}
		value, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", field.name, err)
		}
		*field.dst = Duration(value)
	}
	return cfg, nil
}
