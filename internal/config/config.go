package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	appLog "plancal/internal/log"
	"plancal/internal/nowline"
	"plancal/internal/placement"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// Color is the palette token (or literal colour) given to imported events.
	Color string `yaml:"color" json:"color"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// CalDAVConfig points at a single CalDAV calendar collection.
type CalDAVConfig struct {
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	// Calendar is the collection path, e.g. "/calendars/me/home/".
	Calendar string `yaml:"calendar" json:"calendar"`
	Color    string `yaml:"color" json:"color"`
}

// Enabled reports whether enough is configured to query the server.
func (c *CalDAVConfig) Enabled() bool {
	return c != nil && c.URL != "" && c.Calendar != ""
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls PNG snapshots of the week page. Snapshots are taken
// at startup and after every refresh unless Disabled is set.
type CaptureConfig struct {
	Disabled   bool   `yaml:"disabled" json:"disabled"`
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"`
	OutputPath string `yaml:"output_path" json:"output_path"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as the single display zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the cron schedule for pulling ICS/CalDAV sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// NowCadence is the cron schedule of the current-time marker.
	NowCadence string `yaml:"now_cadence" json:"now_cadence"`

	// HorizonDays is the number of future days imported from feeds.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// DatabasePath is the SQLite file holding events and tasks.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// Layout is the timeline geometry.
	Layout placement.Layout `yaml:"layout" json:"layout"`

	// Palette adds or overrides named colours.
	Palette map[string]string `yaml:"palette" json:"palette"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// CalDAV, if set, is pulled alongside the ICS feeds.
	CalDAV *CalDAVConfig `yaml:"caldav,omitempty" json:"caldav,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Asia/Seoul"
	defaultRefreshCron = "*/15 * * * *"
	defaultHorizonDays = 35
	defaultDatabase    = "/var/lib/plancal/plancal.db"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		RefreshCron:  defaultRefreshCron,
		NowCadence:   nowline.DefaultCadence,
		HorizonDays:  defaultHorizonDays,
		LogLevel:     "info",
		LogFormat:    "text",
		DatabasePath: defaultDatabase,
		Layout:       placement.DefaultLayout(),
		Palette:      map[string]string{},
		ICS:          []ICSConfig{},
		Capture: CaptureConfig{
			Width:      1280,
			Height:     1100,
			TimeoutSec: 30,
			OutputPath: "/var/lib/plancal/week.png",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.NowCadence == "" {
		c.NowCadence = d.NowCadence
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	c.Layout.Normalize()
	if c.Palette == nil {
		c.Palette = map[string]string{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = d.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = d.Capture.Height
	}
	if c.Capture.TimeoutSec <= 0 {
		c.Capture.TimeoutSec = d.Capture.TimeoutSec
	}
	if c.Capture.OutputPath == "" {
		c.Capture.OutputPath = d.Capture.OutputPath
	}
}

// Location resolves Timezone, falling back to time.Local when it is invalid.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// envOverrides are applied on top of the YAML file. Unset variables leave the
// file's values alone.
type envOverrides struct {
	Listen         string `env:"PLANCAL_LISTEN"`
	Timezone       string `env:"PLANCAL_TIMEZONE"`
	DatabasePath   string `env:"PLANCAL_DATABASE_PATH"`
	LogLevel       string `env:"PLANCAL_LOG_LEVEL"`
	LogFormat      string `env:"PLANCAL_LOG_FORMAT"`
	CalDAVUsername string `env:"PLANCAL_CALDAV_USERNAME"`
	CalDAVPassword string `env:"PLANCAL_CALDAV_PASSWORD"`
	AuthUsername   string `env:"PLANCAL_AUTH_USERNAME"`
	AuthPassword   string `env:"PLANCAL_AUTH_PASSWORD"`
}

// ApplyEnv overlays PLANCAL_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Listen, o.Listen)
	set(&c.Timezone, o.Timezone)
	set(&c.DatabasePath, o.DatabasePath)
	set(&c.LogLevel, o.LogLevel)
	set(&c.LogFormat, o.LogFormat)

	if o.CalDAVUsername != "" || o.CalDAVPassword != "" {
		if c.CalDAV == nil {
			c.CalDAV = &CalDAVConfig{}
		}
		set(&c.CalDAV.Username, o.CalDAVUsername)
		set(&c.CalDAV.Password, o.CalDAVPassword)
	}
	if o.AuthUsername != "" || o.AuthPassword != "" {
		if c.BasicAuth == nil {
			c.BasicAuth = &BasicAuthConfig{}
		}
		set(&c.BasicAuth.Username, o.AuthUsername)
		set(&c.BasicAuth.Password, o.AuthPassword)
	}
	return nil
}

// Load loads configuration from the given YAML path and applies environment
// overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned. When that write
//     fails the defaults are still returned, with env overrides applied,
//     together with the write error.
//   - Otherwise the YAML is unmarshalled and defaults are filled in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var (
		cfg     *Config
		saveErr error
	)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			saveErr = fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, saveErr
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".plancal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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
