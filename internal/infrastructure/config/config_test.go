package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Preview config
	assert.Equal(t, 500*time.Millisecond, cfg.Preview.Debounce)
	assert.Equal(t, 100, cfg.Preview.LogCapacity)
	assert.True(t, cfg.Preview.Headless)
	assert.Empty(t, cfg.Preview.Template)

	// Sandbox config
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 1024, cfg.Sandbox.InboxSize)
	assert.Equal(t, 3, cfg.Sandbox.SuspendAfter)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Cooldown)
	assert.True(t, cfg.Sandbox.AllowModals)
	assert.True(t, cfg.Sandbox.AllowPopups)
}

func TestLoadMatchesDefault(t *testing.T) {
	// Should match Default when no env vars set
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                 "9000",
		"HOST":                 "127.0.0.1",
		"LOG_LEVEL":            "debug",
		"LOG_DEV":              "true",
		"RATE_LIMIT_RPS":       "500",
		"RATE_LIMIT_BURST":     "1000",
		"RATE_LIMIT_ENABLED":   "false",
		"PREVIEW_DEBOUNCE":     "250ms",
		"PREVIEW_LOG_CAPACITY": "20",
		"PREVIEW_HEADLESS":     "false",
		"PREVIEW_TEMPLATE":     "/etc/livepen/starter.yaml",
		"SANDBOX_TIMEOUT":      "2s",
		"SANDBOX_INBOX":        "64",
		"SANDBOX_ALLOW_MODALS": "false",
	}

	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, 250*time.Millisecond, cfg.Preview.Debounce)
	assert.Equal(t, 20, cfg.Preview.LogCapacity)
	assert.False(t, cfg.Preview.Headless)
	assert.Equal(t, "/etc/livepen/starter.yaml", cfg.Preview.Template)

	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 64, cfg.Sandbox.InboxSize)
	assert.False(t, cfg.Sandbox.AllowModals)
	assert.True(t, cfg.Sandbox.AllowPopups)
}

func TestLoadInvalidValue(t *testing.T) {
	err := os.Setenv("PREVIEW_DEBOUNCE", "soon")
	require.NoError(t, err)
	defer os.Unsetenv("PREVIEW_DEBOUNCE")

	_, err = Load()
	assert.Error(t, err)

	// LoadOrDefault falls back to defaults instead
	cfg := LoadOrDefault()
	assert.Equal(t, 500*time.Millisecond, cfg.Preview.Debounce)
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{
			name:     "default values",
			wantPort: "8000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port",
			port:     "9000",
			wantPort: "9000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port and host",
			port:     "3000",
			host:     "127.0.0.1",
			wantPort: "3000",
			wantHost: "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment
			os.Unsetenv("PORT")
			os.Unsetenv("HOST")

			if tt.port != "" {
				err := os.Setenv("PORT", tt.port)
				require.NoError(t, err)
				defer os.Unsetenv("PORT")
			}
			if tt.host != "" {
				err := os.Setenv("HOST", tt.host)
				require.NoError(t, err)
				defer os.Unsetenv("HOST")
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}

func TestPreviewConfig(t *testing.T) {
	tests := []struct {
		name         string
		debounce     string
		headless     string
		wantDebounce time.Duration
		wantHeadless bool
	}{
		{
			name:         "default values",
			wantDebounce: 500 * time.Millisecond,
			wantHeadless: true,
		},
		{
			name:         "slow typist",
			debounce:     "1s",
			wantDebounce: time.Second,
			wantHeadless: true,
		},
		{
			name:         "browser only",
			headless:     "false",
			wantDebounce: 500 * time.Millisecond,
			wantHeadless: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("PREVIEW_DEBOUNCE")
			os.Unsetenv("PREVIEW_HEADLESS")

			if tt.debounce != "" {
				err := os.Setenv("PREVIEW_DEBOUNCE", tt.debounce)
				require.NoError(t, err)
				defer os.Unsetenv("PREVIEW_DEBOUNCE")
			}
			if tt.headless != "" {
				err := os.Setenv("PREVIEW_HEADLESS", tt.headless)
				require.NoError(t, err)
				defer os.Unsetenv("PREVIEW_HEADLESS")
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantDebounce, cfg.Preview.Debounce)
			assert.Equal(t, tt.wantHeadless, cfg.Preview.Headless)
		})
	}
}
