package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Preview   PreviewConfig
	Sandbox   SandboxConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// PreviewConfig holds render pipeline configuration.
type PreviewConfig struct {
	Debounce    time.Duration `envconfig:"PREVIEW_DEBOUNCE" default:"500ms"`
	LogCapacity int           `envconfig:"PREVIEW_LOG_CAPACITY" default:"100"` // At most 100
	Headless    bool          `envconfig:"PREVIEW_HEADLESS" default:"true"`
	Template    string        `envconfig:"PREVIEW_TEMPLATE"` // YAML or TOML file with starter buffers
}

// SandboxConfig holds execution sandbox configuration.
type SandboxConfig struct {
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	InboxSize    int           `envconfig:"SANDBOX_INBOX" default:"1024"`
	MaxCallStack int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	SuspendAfter int           `envconfig:"SANDBOX_SUSPEND_AFTER" default:"3"`
	Cooldown     time.Duration `envconfig:"SANDBOX_SUSPEND_COOLDOWN" default:"30s"`
	AllowModals  bool          `envconfig:"SANDBOX_ALLOW_MODALS" default:"true"`
	AllowPopups  bool          `envconfig:"SANDBOX_ALLOW_POPUPS" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Preview: PreviewConfig{
			Debounce:    500 * time.Millisecond,
			LogCapacity: 100,
			Headless:    true,
		},
		Sandbox: SandboxConfig{
			Timeout:      5 * time.Second,
			InboxSize:    1024,
			MaxCallStack: 1024,
			SuspendAfter: 3,
			Cooldown:     30 * time.Second,
			AllowModals:  true,
			AllowPopups:  true,
		},
	}
}
