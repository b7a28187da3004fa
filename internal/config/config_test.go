package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Dataset.Driver)
	assert.Equal(t, "divisions.db", cfg.Dataset.Path)
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 50.0, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 100, cfg.Server.RateBurst)
	assert.Equal(t, "/tmp/divisions", cfg.Loader.TempDir)
	assert.Equal(t, 300, cfg.Loader.TimeoutSecs)
	assert.Equal(t, 4, cfg.Loader.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chtemp(t)

	yaml := `
dataset:
  driver: postgres
  database_url: postgres://localhost/divisions
cache:
  max_entries: 64
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Dataset.Driver)
	assert.Equal(t, "postgres://localhost/divisions", cfg.Dataset.DatabaseURL)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Loader.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chtemp(t)

	yaml := `
dataset:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DIVISIONS_DATASET_DRIVER", "postgres")
	t.Setenv("DIVISIONS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Dataset.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("DIVISIONS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func validDefaults() *Config {
	return &Config{
		Dataset: DatasetConfig{Driver: "sqlite", Path: "divisions.db"},
		Cache:   CacheConfig{MaxEntries: 256},
		Server:  ServerConfig{Port: 8080, RateLimit: 50, RateBurst: 100},
		Loader:  LoaderConfig{Manifest: "manifest.yaml", Concurrency: 4},
	}
}

func TestValidateQuery(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("query"))

	cfg.Dataset.Path = ""
	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.path is required")
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Dataset.Driver = "postgres"

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.database_url is required")

	cfg.Dataset.DatabaseURL = "postgres://localhost/divisions"
	assert.NoError(t, cfg.Validate("query"))
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Dataset.Driver = "duckdb"

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.driver must be sqlite or postgres")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be between 1 and 65535")
}

func TestValidateLoad(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("load"))

	cfg.Loader.Manifest = ""
	err := cfg.Validate("load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "loader.manifest is required")

	cfg = validDefaults()
	cfg.Dataset.Driver = "postgres"
	cfg.Dataset.DatabaseURL = "postgres://localhost/divisions"
	err = cfg.Validate("load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot loading requires the sqlite driver")

	cfg = validDefaults()
	cfg.Loader.Concurrency = 0
	err = cfg.Validate("load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "loader.concurrency must be between 1 and 16")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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
