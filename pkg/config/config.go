// Package config defines the server configuration surface: listener
// address, scheduling limits, run defaults, and artifact handling,
// loaded from a YAML file with sensible defaults for every field.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/pilot/pkg/types"
)

// Config represents the full server configuration.
type Config struct {
	// ListenAddr is the host:port the HTTP/WebSocket server binds to.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// MaxConcurrency bounds how many runs execute simultaneously.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// Run defaults applied to submissions that omit them.
	Run RunDefaults `yaml:"run" json:"run"`

	// Artifacts configures working-area and artifact retention.
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// EnableBrowserCommands turns on the interactive browser session
	// shared by browser_command messages.
	EnableBrowserCommands bool `yaml:"enable_browser_commands" json:"enable_browser_commands"`
}

// RunDefaults defines per-run settings used when a submission leaves
// them unset.
type RunDefaults struct {
	Browser   string `yaml:"browser" json:"browser"`
	Headless  bool   `yaml:"headless" json:"headless"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms"`
}

// ArtifactConfig defines where runs execute and what survives them.
type ArtifactConfig struct {
	// WorkDir is the parent directory for per-session working areas.
	// Empty means the system temp directory.
	WorkDir string `yaml:"work_dir" json:"work_dir"`

	// Keep retains artifact files after a run completes.
	Keep bool `yaml:"keep" json:"keep"`

	// OutputDir receives retained artifacts, one subdirectory per
	// session. Required when Keep is set.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// DefaultConfig returns a configuration suitable for local use.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     "localhost:8765",
		MaxConcurrency: 3,
		Run: RunDefaults{
			Browser:   string(types.BrowserChromium),
			Headless:  true,
			TimeoutMs: 60000,
		},
		Artifacts: ArtifactConfig{
			OutputDir: ".pilot/artifacts",
		},
	}
}

// Load reads a YAML configuration file, layering it over the defaults.
// A missing file is not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}

	if c.Run.Browser != "" && !types.BrowserKind(c.Run.Browser).Valid() {
		return fmt.Errorf("invalid browser: %s (must be 'chromium', 'firefox', or 'webkit')", c.Run.Browser)
	}

	if c.Run.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms cannot be negative")
	}

	if c.Artifacts.Keep && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts.keep is enabled")
	}

	return nil
}

// ApplyRunDefaults fills in unset fields of a run configuration from
// the server defaults.
func (c *Config) ApplyRunDefaults(rc *types.RunConfig) {
	if rc.Browser == "" && c.Run.Browser != "" {
		rc.Browser = types.BrowserKind(c.Run.Browser)
	}
	if rc.TimeoutMs == 0 {
		rc.TimeoutMs = c.Run.TimeoutMs
	}
}
