package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone query windows and the digest schedule are
	// expressed in (e.g. "Asia/Seoul"). Stored event times are not converted.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Database is the path of the SQLite file holding master events.
	Database string `yaml:"database" json:"database"`

	// CalendarName is the X-WR-CALNAME of the exported feed.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// HorizonDays is the default size of the upcoming window.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BackfillDays is the default size of the past window.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// MaxOccurrences caps occurrences per master event per expansion.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// Digest is a cron-style schedule (e.g. "0 7 * * *") for logging the
	// upcoming agenda.
	Digest string `yaml:"digest" json:"digest"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "Asia/Seoul"
	defaultDatabase       = "eventcal.db"
	defaultCalendarName   = "eventcal"
	defaultHorizonDays    = 30
	defaultBackfillDays   = 30
	defaultMaxOccurrences = 365
	defaultDigest         = "0 7 * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		Database:       defaultDatabase,
		CalendarName:   defaultCalendarName,
		HorizonDays:    defaultHorizonDays,
		BackfillDays:   defaultBackfillDays,
		MaxOccurrences: defaultMaxOccurrences,
		Digest:         defaultDigest,
		BasicAuth:      nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.CalendarName == "" {
		c.CalendarName = defaultCalendarName
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.BackfillDays <= 0 {
		c.BackfillDays = defaultBackfillDays
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	if c.Digest == "" {
		c.Digest = defaultDigest
	}
	// Half-configured auth would lock everyone out; treat it as disabled.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone, falling back to the process local zone when
// the name is unknown.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

// Horizon returns HorizonDays as a duration.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// Backfill returns BackfillDays as a duration.
func (c *Config) Backfill() time.Duration {
	return time.Duration(c.BackfillDays) * 24 * time.Hour
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename in the same directory) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
