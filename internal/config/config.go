package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	DefaultListen            = "127.0.0.1:4000"
	DefaultWeekStart         = "monday"
	DefaultProbeTimeoutSec   = 5
	DefaultFetchTimeoutSec   = 15
	DefaultMaxRedirects      = 5
	DefaultMaxBytes          = 10 * 1024 * 1024
	DefaultUserAgent         = "icsview/0.1"
	DefaultFontScale         = 1.0
	DefaultEntriesPerPage    = 25
	DefaultPDFTimeoutSeconds = 30
)

// LogConfig controls the global logger.
type LogConfig struct {
	// Level is one of "debug", "info", "error".
	Level string `yaml:"level" json:"level"`
	// Format is "text" (default) or "json".
	Format string `yaml:"format" json:"format"`
}

// FetchConfig bounds every outbound calendar retrieval.
type FetchConfig struct {
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds" json:"probe_timeout_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxRedirects        int    `yaml:"max_redirects" json:"max_redirects"`
	MaxBytes            int64  `yaml:"max_bytes" json:"max_bytes"`
	UserAgent           string `yaml:"user_agent" json:"user_agent"`
}

// PrintConfig holds defaults for the print document.
type PrintConfig struct {
	// FontScale multiplies every font size of the print stylesheet.
	FontScale float64 `yaml:"font_scale" json:"font_scale"`
	// EntriesPerPage caps how many events a list page carries.
	EntriesPerPage int `yaml:"entries_per_page" json:"entries_per_page"`
	// PDFEnabled turns on format=pdf, which needs a local Chromium.
	PDFEnabled        bool `yaml:"pdf_enabled" json:"pdf_enabled"`
	PDFTimeoutSeconds int  `yaml:"pdf_timeout_seconds" json:"pdf_timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to lay out grids (e.g. "Europe/Rome").
	// Empty means the process local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in calendar views. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// CORSOrigin is sent as Access-Control-Allow-Origin on API responses.
	CORSOrigin string `yaml:"cors_origin" json:"cors_origin"`

	Log   LogConfig   `yaml:"log" json:"log"`
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`
	Print PrintConfig `yaml:"print" json:"print"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     DefaultListen,
		Timezone:   "",
		WeekStart:  DefaultWeekStart,
		CORSOrigin: "*",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Fetch: FetchConfig{
			ProbeTimeoutSeconds: DefaultProbeTimeoutSec,
			TimeoutSeconds:      DefaultFetchTimeoutSec,
			MaxRedirects:        DefaultMaxRedirects,
			MaxBytes:            DefaultMaxBytes,
			UserAgent:           DefaultUserAgent,
		},
		Print: PrintConfig{
			FontScale:         DefaultFontScale,
			EntriesPerPage:    DefaultEntriesPerPage,
			PDFEnabled:        false,
			PDFTimeoutSeconds: DefaultPDFTimeoutSeconds,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	// WeekStart default & validation.
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = DefaultWeekStart
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = "*"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format != "json" {
		c.Log.Format = "text"
	}

	if c.Fetch.ProbeTimeoutSeconds <= 0 {
		c.Fetch.ProbeTimeoutSeconds = DefaultProbeTimeoutSec
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = DefaultFetchTimeoutSec
	}
	// Zero redirects is a legitimate choice; only negative values are reset.
	if c.Fetch.MaxRedirects < 0 {
		c.Fetch.MaxRedirects = DefaultMaxRedirects
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = DefaultMaxBytes
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}

	if c.Print.FontScale <= 0 {
		c.Print.FontScale = DefaultFontScale
	}
	if c.Print.EntriesPerPage <= 0 {
		c.Print.EntriesPerPage = DefaultEntriesPerPage
	}
	if c.Print.PDFTimeoutSeconds <= 0 {
		c.Print.PDFTimeoutSeconds = DefaultPDFTimeoutSeconds
	}
}

// WeekStartDay converts WeekStart into a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Location resolves Timezone, falling back to time.Local when it is empty or
// unknown. The error is returned so callers can log the fallback.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
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

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
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

	tmp, err := os.CreateTemp(dir, ".icsview-config-*.tmp")
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
