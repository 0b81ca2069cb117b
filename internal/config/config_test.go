package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chtemp runs the test from an empty directory so no config.yaml is found.
func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "forest-watch.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "feeds", cfg.Source.Dir)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.Nominatim.BaseURL)
	assert.Equal(t, "forest-watch/1.0", cfg.Geocode.Nominatim.UserAgent)
	assert.Equal(t, "au", cfg.Geocode.Nominatim.CountryCodes)
	assert.Equal(t, 100, cfg.Geocode.PremiumBudget)
	assert.Equal(t, 256, cfg.Geocode.EnrichQueueSize)
	assert.Empty(t, cfg.Geocode.Google.Key, "premium tier disabled by default")
	assert.InDelta(t, 0.75, cfg.Match.FacilityThreshold, 0.001)
	assert.InDelta(t, 0.85, cfg.Match.ClosureThreshold, 0.001)
	assert.Equal(t, 6, cfg.Refresh.TTLHours)
	assert.Equal(t, "NSW, Australia", cfg.Refresh.Region)
	assert.Equal(t, "DIST_NAME", cfg.FireDanger.ShapefileNameField)
	assert.Equal(t, "DIST_NO", cfg.FireDanger.ShapefileCodeField)
	assert.False(t, cfg.Routes.Enabled)
	assert.Equal(t, "https://router.project-osrm.org", cfg.Routes.BaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/forestwatch
geocode:
  premium_budget: 25
match:
  closure_threshold: 0.9
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/forestwatch", cfg.Store.DatabaseURL)
	assert.Equal(t, 25, cfg.Geocode.PremiumBudget)
	assert.InDelta(t, 0.9, cfg.Match.ClosureThreshold, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.75, cfg.Match.FacilityThreshold, 0.001)
	assert.Equal(t, 6, cfg.Refresh.TTLHours)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FORESTWATCH_STORE_DRIVER", "postgres")
	t.Setenv("FORESTWATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("FORESTWATCH_SERVER_PORT", "3000")
	t.Setenv("FORESTWATCH_GEOCODE_GOOGLE_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.Geocode.Google.Key)
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
