package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("DIALCAST_API_KEY", "")
	t.Setenv("DIALCAST_API_URL", "")
	t.Setenv("DIALCAST_AGENT_ID", "")
	t.Setenv("DIALCAST_DATA_DIR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Dispatch.BatchSize)
	assert.Equal(t, ".dialcast", cfg.DataDir)
	assert.Equal(t, 100, cfg.Watch.PageSize)
}

func TestLoadParsesFileAndMergesDefaults(t *testing.T) {
	t.Setenv("DIALCAST_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: https://calls.example.com/v1
  api_key: file-key
dispatch:
  batch_size: 25
  batch_delay: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://calls.example.com/v1", cfg.API.BaseURL)
	assert.Equal(t, "file-key", cfg.API.APIKey)
	assert.Equal(t, 25, cfg.Dispatch.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.GetBatchDelay())
	// Untouched sections keep defaults.
	assert.Equal(t, "10s", cfg.Watch.PollInterval)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("api key wins over file", func(t *testing.T) {
		t.Setenv("DIALCAST_API_KEY", "env-key")
		cfg := &Config{API: APIConfig{APIKey: "file-key"}}
		cfg.applyEnvOverrides()
		assert.Equal(t, "env-key", cfg.API.APIKey)
	})

	t.Run("agent id", func(t *testing.T) {
		t.Setenv("DIALCAST_AGENT_ID", "agent_42")
		cfg := &Config{}
		cfg.applyEnvOverrides()
		assert.Equal(t, "agent_42", cfg.Agent.ID)
	})

	t.Run("debug flag", func(t *testing.T) {
		t.Setenv("DIALCAST_DEBUG", "true")
		cfg := &Config{}
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Logging.DebugMode)
	})
}

func TestDurationGettersFallBack(t *testing.T) {
	cfg := &Config{
		API:      APIConfig{Timeout: "bogus"},
		Dispatch: DispatchConfig{BatchDelay: ""},
		Watch:    WatchConfig{PollInterval: "-5s"},
	}
	assert.Equal(t, 30*time.Second, cfg.GetAPITimeout())
	assert.Equal(t, 2*time.Second, cfg.GetBatchDelay())
	assert.Equal(t, 10*time.Second, cfg.GetPollInterval())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.APIKey = "k"
	cfg.Agent.ID = "a"
	require.NoError(t, cfg.Validate())

	cfg.Dispatch.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	assert.Error(t, cfg.Validate(), "missing api key must fail validation")
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("DIALCAST_API_KEY", "")
	t.Setenv("DIALCAST_AGENT_ID", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Agent.ID = "agent_7"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "agent_7", loaded.Agent.ID)
}
