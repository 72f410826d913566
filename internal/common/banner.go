package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective runtime settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	build := CurrentBuild()
	banner.Print("RateProbe", build.Version)

	logger.Info().
		Str("version", build.String()).
		Str("environment", config.Environment).
		Str("browser_engine", config.Browser.Engine).
		Bool("headless", config.Browser.Headless).
		Str("cookies_backend", config.Cookies.Backend).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Msg("RateProbe starting")
}
