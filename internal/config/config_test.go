package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`listen: "0.0.0.0:9000"
week_start: "friday"
fetch:
  max_redirects: 0
  timeout_seconds: -3
print:
  font_scale: 1.5
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, DefaultWeekStart, cfg.WeekStart)
	assert.Equal(t, 0, cfg.Fetch.MaxRedirects, "zero redirects is kept")
	assert.Equal(t, DefaultFetchTimeoutSec, cfg.Fetch.TimeoutSeconds)
	assert.Equal(t, 1.5, cfg.Print.FontScale)
	assert.Equal(t, DefaultEntriesPerPage, cfg.Print.EntriesPerPage)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{Log: LogConfig{Format: "xml"}, Fetch: FetchConfig{MaxRedirects: -1}}
	cfg.Normalize()

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DefaultMaxRedirects, cfg.Fetch.MaxRedirects)
	assert.Equal(t, int64(DefaultMaxBytes), cfg.Fetch.MaxBytes)
	assert.Equal(t, DefaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, DefaultPDFTimeoutSeconds, cfg.Print.PDFTimeoutSeconds)
}

func TestWeekStartDay(t *testing.T) {
	assert.Equal(t, time.Monday, (&Config{WeekStart: "monday"}).WeekStartDay())
	assert.Equal(t, time.Sunday, (&Config{WeekStart: "sunday"}).WeekStartDay())
	assert.Equal(t, time.Monday, (&Config{}).WeekStartDay())
}

func TestLocation(t *testing.T) {
	loc, err := (&Config{}).Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = (&Config{Timezone: "UTC"}).Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	loc, err = (&Config{Timezone: "Mars/Olympus"}).Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}
