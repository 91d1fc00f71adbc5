package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Providers ProvidersConfig `yaml:"providers"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Usage     UsageConfig     `yaml:"usage"`
	Session   SessionConfig   `yaml:"session"`
	Capture   CaptureConfig   `yaml:"capture"`
	RateLimit int             `yaml:"rateLimit"` // messages per minute per session (0 = disabled)
	Log       LogConfig       `yaml:"log"`
}

// ProvidersConfig holds credentials and model ids for each backend
type ProvidersConfig struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity"`
	Whisper    WhisperConfig    `yaml:"whisper"`
}

// AnthropicConfig configures the analytical backend
type AnthropicConfig struct {
	APIKey    string `yaml:"apiKey"`
	AuthToken string `yaml:"authToken"` // setup-token (sk-ant-oat-...) for bearer auth
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// PerplexityConfig configures the real-time search backend
type PerplexityConfig struct {
	APIKey    string `yaml:"apiKey"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// WhisperConfig configures the optional transcription backend
type WhisperConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// ExecutorConfig bounds the retry/backoff wrapper around provider calls
type ExecutorConfig struct {
	MaxRetries     int `yaml:"maxRetries"`     // attempts per provider call (default: 3)
	TimeoutSeconds int `yaml:"timeoutSeconds"` // per-attempt timeout (default: 15)
}

// UsageConfig holds the local query quota
type UsageConfig struct {
	Quota int `yaml:"quota"` // free queries per installation (default: 25)
}

// SessionConfig bounds conversation memory
type SessionConfig struct {
	MaxHistory int `yaml:"maxHistory"` // entries kept per session (default: 50)
}

// CaptureConfig configures headless page capture
type CaptureConfig struct {
	Enabled        bool `yaml:"enabled"`        // requires Chrome/Chromium (default: false)
	Headless       bool `yaml:"headless"`
	TimeoutSeconds int  `yaml:"timeoutSeconds"` // page load timeout (default: 30)
	Stealth        bool `yaml:"stealth"`        // avoid bot detection (default: true)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
}

func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Anthropic: AnthropicConfig{
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 1024,
			},
			Perplexity: PerplexityConfig{
				Model:     "sonar",
				MaxTokens: 1024,
			},
			Whisper: WhisperConfig{
				Enabled: false,
				Model:   "whisper-1",
			},
		},
		Executor: ExecutorConfig{
			MaxRetries:     3,
			TimeoutSeconds: 15,
		},
		Usage: UsageConfig{
			Quota: 25,
		},
		Session: SessionConfig{
			MaxHistory: 50,
		},
		Capture: CaptureConfig{
			Enabled:        false, // Requires Chrome
			Headless:       true,
			TimeoutSeconds: 30,
			Stealth:        true,
		},
		RateLimit: 0,
		Log: LogConfig{
			Level: "info",
		},
	}
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pagesage")
}

func configPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDBPath returns the default database path
func DefaultDBPath() string {
	return filepath.Join(configDir(), "pagesage.db")
}

func Load() (*Config, error) {
	return LoadFrom(configPath())
}

// LoadFrom reads a config file, applying defaults for unset fields
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config not found: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func Save(cfg *Config) (string, error) {
	dir := configDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	path := configPath()
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}

	return path, nil
}

// ValidationResult holds the result of config validation
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// Validate checks the configuration for required fields and common issues
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	if c.Providers.Anthropic.APIKey == "" && c.Providers.Anthropic.AuthToken == "" {
		result.Errors = append(result.Errors, "analytical backend credentials required: set providers.anthropic.apiKey or providers.anthropic.authToken")
	}

	if c.Providers.Perplexity.APIKey == "" {
		result.Warnings = append(result.Warnings, "no Perplexity key: real-time and hybrid routing will fall back to the analytical model")
	}

	if c.Providers.Whisper.Enabled && c.Providers.Whisper.APIKey == "" {
		result.Errors = append(result.Errors, "transcription enabled but providers.whisper.apiKey not set")
	}

	if c.Executor.MaxRetries < 1 || c.Executor.MaxRetries > 5 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("executor.maxRetries %d outside the usual 1..5 range", c.Executor.MaxRetries))
	}

	if c.Executor.TimeoutSeconds < 1 {
		result.Errors = append(result.Errors, "executor.timeoutSeconds must be at least 1")
	}

	if c.Usage.Quota < 1 {
		result.Errors = append(result.Errors, "usage.quota must be at least 1")
	}

	if c.Session.MaxHistory < 1 {
		result.Warnings = append(result.Warnings, "session.maxHistory < 1, conversation memory effectively disabled")
	}

	if c.Capture.Enabled {
		result.Warnings = append(result.Warnings, "page capture enabled - requires Chrome/Chromium installed")
	}

	if c.RateLimit > 100 {
		result.Warnings = append(result.Warnings, "rateLimit > 100 msg/min - consider a lower limit")
	}

	return result
}
