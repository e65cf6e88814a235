package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikabot-systems/leadscout/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "wiring.db")
	c.Search.BaseURL = "https://www.google.com/search"
	c.Search.TimeoutSecs = 5
	c.Search.RatePerSec = 1
	c.Apollo.Key = "key"
	c.Apollo.BaseURL = "https://api.apollo.io/v1"
	c.Apollo.PerPage = 25
	return c
}

func TestInitStoreSQLite(t *testing.T) {
	cfg = testConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Migrate(context.Background()))
}

func TestInitStoreUnknownDriver(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "oracle"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestBuildSources(t *testing.T) {
	cfg = testConfig(t)
	cfg.Collect.Sources = []string{"profile_search", "web_contact"}

	sources, err := buildSources()
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "profile_search", sources[0].Name())
	assert.Equal(t, "web_contact", sources[1].Name())
}

func TestBuildSourcesUnknown(t *testing.T) {
	cfg = testConfig(t)
	cfg.Collect.Sources = []string{"crystal_ball"}

	_, err := buildSources()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestBuildSinks(t *testing.T) {
	cfg = testConfig(t)
	cfg.Sink.Targets = []string{"csv", "xlsx"}
	cfg.Sink.CSVPath = filepath.Join(t.TempDir(), "leads.csv")
	cfg.Sink.XLSXPath = filepath.Join(t.TempDir(), "leads.xlsx")

	sinks, err := buildSinks()
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "csv", sinks[0].Name())
	assert.Equal(t, "xlsx", sinks[1].Name())
}

func TestBuildSinksUnknown(t *testing.T) {
	cfg = testConfig(t)
	cfg.Sink.Targets = []string{"fax"}

	_, err := buildSinks()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sink target")
}

func TestBuildEngineThresholdOverrides(t *testing.T) {
	cfg = testConfig(t)
	cfg.Score.HotThreshold = 95
	cfg.Score.HighThreshold = 85
	cfg.Score.MediumThreshold = 75

	engine, err := buildEngine()
	require.NoError(t, err)

	policy := engine.Policy()
	assert.Equal(t, 95.0, policy.HotThreshold)
	assert.Equal(t, 85.0, policy.HighThreshold)
	assert.Equal(t, 75.0, policy.MediumThreshold)
}

func TestBuildEngineFromPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("score:\n  hot_threshold: 92\n"), 0o644))

	cfg = testConfig(t)
	cfg.Score.PolicyPath = path

	engine, err := buildEngine()
	require.NoError(t, err)
	assert.Equal(t, 92.0, engine.Policy().HotThreshold)
}

func TestBuildCollector(t *testing.T) {
	cfg = testConfig(t)
	cfg.Collect.Sources = []string{"profile_search"}
	cfg.Collect.DailyTarget = 10

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	col, err := buildCollector(st)
	require.NoError(t, err)
	assert.NotNil(t, col)
}
