// Package config holds all dialcast configuration, loaded from
// .dialcast/config.yaml with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dialcast configuration.
type Config struct {
	// API configures the remote calling service.
	API APIConfig `yaml:"api"`

	// Agent is the calling agent the CLI operates on behalf of.
	Agent AgentConfig `yaml:"agent"`

	// Dispatch configures batch submission.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Watch configures the campaign watch session.
	Watch WatchConfig `yaml:"watch"`

	// DataDir is where campaign records, exports and logs live.
	DataDir string `yaml:"data_dir"`

	// Logging configures categorized debug logging.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the remote calling API client.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// AgentConfig identifies the calling agent.
type AgentConfig struct {
	ID string `yaml:"id"`
}

// DispatchConfig configures the batch dispatcher.
type DispatchConfig struct {
	BatchSize  int    `yaml:"batch_size"`
	BatchDelay string `yaml:"batch_delay"`
}

// WatchConfig configures the campaign poller.
type WatchConfig struct {
	PollInterval string `yaml:"poll_interval"`
	PageSize     int    `yaml:"page_size"`
}

// LoggingConfig configures categorized logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://api.dialcast.dev/v1",
			Timeout: "30s",
		},
		Dispatch: DispatchConfig{
			BatchSize:  10,
			BatchDelay: "2s",
		},
		Watch: WatchConfig{
			PollInterval: "10s",
			PageSize:     100,
		},
		DataDir: ".dialcast",
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// DefaultPath returns the default config file location under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".dialcast", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables are applied on top either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DIALCAST_API_KEY"); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv("DIALCAST_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("DIALCAST_AGENT_ID"); v != "" {
		c.Agent.ID = v
	}
	if v := os.Getenv("DIALCAST_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DIALCAST_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// GetAPITimeout parses the API timeout, defaulting to 30s.
func (c *Config) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetBatchDelay parses the inter-batch delay, defaulting to 2s.
func (c *Config) GetBatchDelay() time.Duration {
	d, err := time.ParseDuration(c.Dispatch.BatchDelay)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// GetPollInterval parses the watch poll interval, defaulting to 10s.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Watch.PollInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Validate checks settings required for any remote operation.
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("api key not configured (set DIALCAST_API_KEY or api.api_key)")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base URL not configured")
	}
	if c.Agent.ID == "" {
		return fmt.Errorf("agent id not configured (set DIALCAST_AGENT_ID or agent.id)")
	}
	if c.Dispatch.BatchSize <= 0 {
		return fmt.Errorf("dispatch batch size must be positive, got %d", c.Dispatch.BatchSize)
	}
	return nil
}
