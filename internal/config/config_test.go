package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chtemp moves the test into an empty directory so no screener.yaml on
// the developer machine leaks into the run.
func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "screener.db", cfg.Store.DSN)
	assert.Equal(t, 8, cfg.Store.MaxConns)
	assert.InDelta(t, 0.25, cfg.Match.MinConfidence, 0.001)
	assert.Equal(t, 10, cfg.Match.MaxResults)
	assert.InDelta(t, 0.85, cfg.Match.FuzzyThreshold, 0.001)
	assert.Equal(t, 200, cfg.Match.CandidateLimit)
	assert.Equal(t, 8, cfg.Match.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Match.Timeout)
	assert.Zero(t, cfg.Match.AffiliatedBoost)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 4096, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.InDelta(t, 50.0, cfg.Cache.WarmupRate, 0.001)
	assert.Empty(t, cfg.Terms.File)
	assert.Equal(t, ":8077", cfg.Serve.Addr)
	assert.Equal(t, 15*time.Second, cfg.Serve.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.Serve.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "screener/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 3, cfg.Fetch.Retries)
	assert.Equal(t, 5*time.Minute, cfg.Monitoring.CheckInterval)
	assert.Equal(t, 24*time.Hour, cfg.Monitoring.Lookback)
	assert.InDelta(t, 0.5, cfg.Monitoring.ErrorRateThreshold, 0.001)
	assert.Equal(t, 168*time.Hour, cfg.Monitoring.MaxDatasetAge)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  dsn: postgres://localhost/screener
log:
  level: debug
  format: json
match:
  min_confidence: 0.4
  max_results: 25
cache:
  enabled: false
serve:
  addr: ":9090"
  cors_origins: ["https://compliance.example.com"]
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "screener.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/screener", cfg.Store.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 0.4, cfg.Match.MinConfidence, 0.001)
	assert.Equal(t, 25, cfg.Match.MaxResults)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, ":9090", cfg.Serve.Addr)
	assert.Equal(t, []string{"https://compliance.example.com"}, cfg.Serve.CORSOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 200, cfg.Match.CandidateLimit)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "screener.yaml"), []byte(yaml), 0644))

	t.Setenv("SCREENER_STORE_DRIVER", "postgres")
	t.Setenv("SCREENER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("SCREENER_MATCH_MAX_RESULTS", "5")
	t.Setenv("SCREENER_CACHE_TTL", "90s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Match.MaxResults)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
}

func TestLoadExplicitFile(t *testing.T) {
	chtemp(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serve:\n  addr: \":7001\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Serve.Addr)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	chtemp(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}

func TestValidate_Defaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadValues(t *testing.T) {
	chtemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Store.Driver = "oracle"
	cfg.Match.MinConfidence = 0.99
	cfg.Match.Concurrency = 0
	cfg.Serve.Addr = ""

	verr := cfg.Validate()
	require.Error(t, verr)
	assert.Contains(t, verr.Error(), "store.driver")
	assert.Contains(t, verr.Error(), "match.min_confidence")
	assert.Contains(t, verr.Error(), "match.concurrency")
	assert.Contains(t, verr.Error(), "serve.addr")
}

func TestValidate_BoundaryValues(t *testing.T) {
	chtemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Match.MinConfidence = 0.05
	cfg.Match.MaxResults = 50
	cfg.Match.Concurrency = 32
	assert.NoError(t, cfg.Validate())

	cfg.Match.MaxResults = 51
	assert.Error(t, cfg.Validate())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
