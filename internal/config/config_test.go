package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadscout.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.apollo.io/v1", cfg.Apollo.BaseURL)
	assert.Equal(t, 25, cfg.Apollo.PerPage)
	assert.Equal(t, "https://api.apify.com/v2", cfg.Apify.BaseURL)
	assert.Equal(t, 10, cfg.Apify.PollIntervalSec)
	assert.Equal(t, 600, cfg.Apify.MaxWaitSec)
	assert.Equal(t, 50, cfg.Collect.DailyTarget)
	assert.Equal(t, 3, cfg.Collect.MaxAttemptsMul)
	assert.Equal(t, 3000, cfg.Collect.MinDelayMillis)
	assert.Equal(t, 7000, cfg.Collect.MaxDelayMillis)
	assert.Contains(t, cfg.Collect.Titles, "IT Director")
	assert.Contains(t, cfg.Collect.Locations, "Ras Al Khaimah")
	assert.Equal(t, []string{"profile_search", "web_contact"}, cfg.Collect.Sources)
	assert.Equal(t, "ICT Solutions", cfg.Collect.ProductsInterest)
	assert.InDelta(t, 90, cfg.Score.HotThreshold, 0.001)
	assert.InDelta(t, 80, cfg.Score.HighThreshold, 0.001)
	assert.InDelta(t, 70, cfg.Score.MediumThreshold, 0.001)
	assert.Equal(t, []string{"csv"}, cfg.Sink.Targets)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
server:
  port: 9090
collect:
  daily_target: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Collect.DailyTarget)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Collect.MaxRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADSCOUT_STORE_DRIVER", "postgres")
	t.Setenv("LEADSCOUT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("LEADSCOUT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
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

// validDefaults returns a Config populated enough to pass validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leadscout.db"
	cfg.Server.Port = 8080
	cfg.Collect.DailyTarget = 50
	cfg.Collect.MaxAttemptsMul = 3
	cfg.Collect.MinDelayMillis = 100
	cfg.Collect.MaxDelayMillis = 200
	cfg.Collect.Sources = []string{"web_contact"}
	cfg.Sink.Targets = []string{"csv"}
	cfg.Sink.CSVPath = "leads.csv"
	return cfg
}

func TestValidateCollect_OK(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("collect"))
}

func TestValidateCollect_MissingSourceCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.Collect.Sources = []string{"profile_search", "actor"}

	err := cfg.Validate("collect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apollo.key is required")
	assert.Contains(t, err.Error(), "apify.token is required")
}

func TestValidateCollect_UnknownSource(t *testing.T) {
	cfg := validDefaults()
	cfg.Collect.Sources = []string{"carrier_pigeon"}

	err := cfg.Validate("collect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source: carrier_pigeon")
}

func TestValidateSync_SinkCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.Sink.Targets = []string{"notion", "salesforce"}

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token")
	assert.Contains(t, err.Error(), "salesforce client_id")

	cfg.Notion.Token = "ntn_token"
	cfg.Notion.LeadDB = "lead-db-id"
	cfg.Salesforce.ClientID = "client"
	cfg.Salesforce.Username = "user@example.com"
	cfg.Salesforce.KeyPath = "key.pem"
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateBadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("collect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
