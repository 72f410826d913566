package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, "chromedp", config.Browser.Engine)
	assert.Equal(t, "badger", config.Cookies.Backend)
	assert.Equal(t, "10m", config.Search.TaskTimeout)
	assert.True(t, config.Vendors.GoogleHotels)
}

func TestLoadFromFilesLayering(t *testing.T) {
	t.Setenv("RATEPROBE_SERVER_PORT", "")
	t.Setenv("RATEPROBE_BROWSER_ENGINE", "")

	base := writeConfig(t, "base.toml", `
[server]
port = 9000
host = "0.0.0.0"

[browser]
engine = "rod"
`)
	override := writeConfig(t, "override.toml", `
[server]
port = 9100

[search]
task_timeout = "2m"
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "rod", config.Browser.Engine)
	assert.Equal(t, "2m", config.Search.TaskTimeout)
	// Untouched sections keep their defaults
	assert.Equal(t, "5m", config.Events.HumanInputTimeout)
}

func TestLoadFromFilesEnvOverrides(t *testing.T) {
	t.Setenv("RATEPROBE_SERVER_PORT", "9200")
	t.Setenv("RATEPROBE_BROWSER_HEADLESS", "false")
	t.Setenv("RATEPROBE_COOKIES_BACKEND", "filesystem")
	t.Setenv("RATEPROBE_CLAUDE_API_KEY", "project-key")
	t.Setenv("ANTHROPIC_API_KEY", "sdk-key")
	t.Setenv("RATEPROBE_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 9200, config.Server.Port)
	assert.False(t, config.Browser.Headless)
	assert.Equal(t, "filesystem", config.Cookies.Backend)
	assert.Equal(t, "project-key", config.Claude.APIKey)
	assert.Equal(t, "google-key", config.Gemini.APIKey)
}

func TestLoadFromFilesErrors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	broken := writeConfig(t, "broken.toml", "[server\nport = ")
	_, err = LoadFromFiles(broken)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown engine", func(c *Config) { c.Browser.Engine = "webkit" }},
		{"unknown cookie backend", func(c *Config) { c.Cookies.Backend = "redis" }},
		{"unknown llm provider", func(c *Config) { c.LLM.DefaultProvider = "openai" }},
		{"bad duration", func(c *Config) { c.Search.TaskTimeout = "ten minutes" }},
		{"bad server timeout", func(c *Config) { c.Server.WriteTimeout = "90" }},
		{"bad reap schedule", func(c *Config) { c.Sessions.ReapSchedule = "every minute" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)

	ApplyFlagOverrides(config, 9300, "127.0.0.1")
	assert.Equal(t, 9300, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseDurationOr("3s", time.Minute))
	assert.Equal(t, time.Minute, ParseDurationOr("", time.Minute))
	assert.Equal(t, time.Minute, ParseDurationOr("soon", time.Minute))
}

func TestIsProduction(t *testing.T) {
	config := NewDefaultConfig()
	assert.False(t, config.IsProduction())

	config.Environment = "Prod"
	assert.True(t, config.IsProduction())
}
