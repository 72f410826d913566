package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Logging     LoggingConfig  `toml:"logging"`
	Storage     StorageConfig  `toml:"storage"`
	Browser     BrowserConfig  `toml:"browser"`
	Sessions    SessionsConfig `toml:"sessions"`
	Events      EventsConfig   `toml:"events"`
	Search      SearchConfig   `toml:"search"`
	Cookies     CookiesConfig  `toml:"cookies"`
	Vendors     VendorsConfig  `toml:"vendors"`
	Match       MatchConfig    `toml:"match"`
	LLM         LLMConfig      `toml:"llm"`
	Claude      ClaudeConfig   `toml:"claude"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Metrics     MetricsConfig  `toml:"metrics"`
}

type ServerConfig struct {
	Port         int    `toml:"port"`
	Host         string `toml:"host"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"` // bounds navigate and page actions, which wait on the browser
	IdleTimeout  string `toml:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// BrowserConfig configures the shared headless browser engine
type BrowserConfig struct {
	Engine            string `toml:"engine"`             // "chromedp" (default) or "rod"
	Headless          bool   `toml:"headless"`           // Run without a visible window
	NoSandbox         bool   `toml:"no_sandbox"`         // Required inside most containers
	DisableGPU        bool   `toml:"disable_gpu"`        // Disable GPU compositing
	UserAgent         string `toml:"user_agent"`         // User agent applied to every session context
	Locale            string `toml:"locale"`             // Accept-Language / locale override (e.g. "en-US")
	StartupTimeout    string `toml:"startup_timeout"`    // Engine launch timeout (default: "30s")
	NavigationTimeout string `toml:"navigation_timeout"` // Per navigation/wait timeout (default: "45s")
}

// SessionsConfig controls session lifetime
type SessionsConfig struct {
	MaxAge       string `toml:"max_age"`       // Sessions older than this are reaped (default: "30m", "" disables)
	ReapSchedule string `toml:"reap_schedule"` // Cron schedule for the reaper (default: "* * * * *")
}

// EventsConfig controls the event channel
type EventsConfig struct {
	HumanInputTimeout string `toml:"human_input_timeout"` // Max wait for a one-time code (default: "5m")
	ProgressInterval  string `toml:"progress_interval"`   // Minimum gap between progress events per task (default: "" = unthrottled)
}

// SearchConfig controls vendor task execution
type SearchConfig struct {
	TaskTimeout string `toml:"task_timeout"` // Wall-clock limit per vendor task (default: "10m")
}

// CookiesConfig selects the cookie persistence backend
type CookiesConfig struct {
	Backend string `toml:"backend"` // "badger" (default) or "filesystem"
	Dir     string `toml:"dir"`     // Directory for the filesystem backend (default: "./cookies")
}

// VendorsConfig controls vendor adapter registration
type VendorsConfig struct {
	Dir          string   `toml:"dir"`           // Directory containing scripted vendor definitions (*.toml)
	Enabled      []string `toml:"enabled"`       // Restrict registration to these ids (empty = all)
	GoogleHotels bool     `toml:"google_hotels"` // Register the built-in Google Hotels adapter
}

// MatchConfig configures LLM arbitration for candidate matching
type MatchConfig struct {
	Model       string  `toml:"model"`       // Model for arbitration, provider detected from prefix ("" = provider default)
	Temperature float32 `toml:"temperature"` // Arbitration temperature (default: 0.3)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "claude")
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY also honoured)
	Model       string  `toml:"model"`       // Default model
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response
	Timeout     string  `toml:"timeout"`     // Per-call timeout
	RateLimit   string  `toml:"rate_limit"`  // Minimum gap between calls
	Temperature float32 `toml:"temperature"` // Default temperature
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Default model
	Timeout     string  `toml:"timeout"`     // Per-call timeout
	RateLimit   string  `toml:"rate_limit"`  // Minimum gap between calls (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Default temperature
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // default: "/metrics"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:         8085,
			Host:         "localhost",
			ReadTimeout:  "15s",
			WriteTimeout: "90s",
			IdleTimeout:  "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Browser: BrowserConfig{
			Engine:            "chromedp",
			Headless:          true,
			NoSandbox:         true,
			DisableGPU:        true,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			Locale:            "en-US",
			StartupTimeout:    "30s",
			NavigationTimeout: "45s",
		},
		Sessions: SessionsConfig{
			MaxAge:       "30m",
			ReapSchedule: "* * * * *", // Every minute
		},
		Events: EventsConfig{
			HumanInputTimeout: "5m",
		},
		Search: SearchConfig{
			TaskTimeout: "10m",
		},
		Cookies: CookiesConfig{
			Backend: "badger",
			Dir:     "./cookies",
		},
		Vendors: VendorsConfig{
			Dir:          "./vendors",
			GoogleHotels: true,
		},
		Match: MatchConfig{
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   1024, // Arbitration replies are a single small JSON object
			Timeout:     "60s",
			RateLimit:   "1s",
			Temperature: 0.3,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "60s",
			RateLimit:   "4s",
			Temperature: 0.3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied separately via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RATEPROBE_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("RATEPROBE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RATEPROBE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if level := os.Getenv("RATEPROBE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if engine := os.Getenv("RATEPROBE_BROWSER_ENGINE"); engine != "" {
		config.Browser.Engine = engine
	}
	if headless := os.Getenv("RATEPROBE_BROWSER_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = b
		}
	}

	if backend := os.Getenv("RATEPROBE_COOKIES_BACKEND"); backend != "" {
		config.Cookies.Backend = backend
	}
	if dir := os.Getenv("RATEPROBE_VENDORS_DIR"); dir != "" {
		config.Vendors.Dir = dir
	}

	if provider := os.Getenv("RATEPROBE_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}

	// Project-scoped keys win over the vendor SDK conventions
	if key := firstEnv("RATEPROBE_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := firstEnv("RATEPROBE_GEMINI_API_KEY", "GOOGLE_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks enumerations, duration strings and cron specs.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("invalid browser.engine %q (expected chromedp or rod)", c.Browser.Engine)
	}

	switch c.Cookies.Backend {
	case "badger", "filesystem":
	default:
		return fmt.Errorf("invalid cookies.backend %q (expected badger or filesystem)", c.Cookies.Backend)
	}

	switch c.LLM.DefaultProvider {
	case LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid llm.default_provider %q", c.LLM.DefaultProvider)
	}

	durations := map[string]string{
		"server.read_timeout":        c.Server.ReadTimeout,
		"server.write_timeout":       c.Server.WriteTimeout,
		"server.idle_timeout":        c.Server.IdleTimeout,
		"browser.startup_timeout":    c.Browser.StartupTimeout,
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"sessions.max_age":           c.Sessions.MaxAge,
		"events.human_input_timeout": c.Events.HumanInputTimeout,
		"events.progress_interval":   c.Events.ProgressInterval,
		"search.task_timeout":        c.Search.TaskTimeout,
		"claude.timeout":             c.Claude.Timeout,
		"claude.rate_limit":          c.Claude.RateLimit,
		"gemini.timeout":             c.Gemini.Timeout,
		"gemini.rate_limit":          c.Gemini.RateLimit,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Sessions.ReapSchedule != "" {
		if err := ValidateSchedule(c.Sessions.ReapSchedule); err != nil {
			return fmt.Errorf("invalid sessions.reap_schedule: %w", err)
		}
	}

	return nil
}

// ValidateSchedule validates a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// ParseDurationOr parses a duration string and falls back to def when empty or invalid.
func ParseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
