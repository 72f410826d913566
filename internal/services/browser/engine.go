package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
)

// EngineConfig holds the resolved settings shared by every engine implementation
type EngineConfig struct {
	Headless          bool
	NoSandbox         bool
	DisableGPU        bool
	UserAgent         string
	Locale            string
	StartupTimeout    time.Duration
	NavigationTimeout time.Duration
}

// NewEngineConfig resolves duration strings and fills defaults
func NewEngineConfig(cfg *common.BrowserConfig) EngineConfig {
	return EngineConfig{
		Headless:          cfg.Headless,
		NoSandbox:         cfg.NoSandbox,
		DisableGPU:        cfg.DisableGPU,
		UserAgent:         cfg.UserAgent,
		Locale:            cfg.Locale,
		StartupTimeout:    common.ParseDurationOr(cfg.StartupTimeout, 30*time.Second),
		NavigationTimeout: common.ParseDurationOr(cfg.NavigationTimeout, 45*time.Second),
	}
}

// NewEngine creates the configured engine. The process is not started until Launch.
func NewEngine(cfg *common.BrowserConfig, logger arbor.ILogger) (interfaces.BrowserEngine, error) {
	config := NewEngineConfig(cfg)

	switch strings.ToLower(cfg.Engine) {
	case "", "chromedp":
		return NewChromeDPEngine(config, logger), nil
	case "rod":
		return NewRodEngine(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported browser engine: %s", cfg.Engine)
	}
}

// operationContext bounds a single page operation by both the page lifetime and the caller
func operationContext(pageCtx, callerCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(pageCtx, timeout)
	stop := context.AfterFunc(callerCtx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// acceptLanguage builds an Accept-Language header value from a locale
func acceptLanguage(locale string) string {
	if locale == "" {
		return ""
	}
	if base, _, ok := strings.Cut(locale, "-"); ok {
		return locale + "," + base + ";q=0.9"
	}
	return locale
}
