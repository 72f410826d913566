package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/handlers"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/metrics"
	"github.com/ternarybob/rateprobe/internal/services/browser"
	"github.com/ternarybob/rateprobe/internal/services/cookies"
	"github.com/ternarybob/rateprobe/internal/services/events"
	"github.com/ternarybob/rateprobe/internal/services/llm"
	"github.com/ternarybob/rateprobe/internal/services/match"
	"github.com/ternarybob/rateprobe/internal/services/pages"
	"github.com/ternarybob/rateprobe/internal/services/search"
	"github.com/ternarybob/rateprobe/internal/services/sessions"
	"github.com/ternarybob/rateprobe/internal/services/transform"
	"github.com/ternarybob/rateprobe/internal/services/vendors"
	"github.com/ternarybob/rateprobe/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	Metrics        *metrics.Metrics
	StorageManager interfaces.StorageManager

	// Browser and sessions
	Engine         interfaces.BrowserEngine
	CookieService  *cookies.Service
	SessionManager *sessions.Manager
	Reaper         *sessions.Reaper

	// Search pipeline
	EventService     *events.Service
	LLMService       *llm.ProviderFactory
	Resolver         *match.Resolver
	VendorRegistry   *vendors.Registry
	SearchService    *search.Service
	TransformService *transform.Service
	PageService      *pages.Service

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	SessionHandler *handlers.SessionHandler
	SearchHandler  *handlers.SearchHandler
	PageHandler    *handlers.PageHandler
	CookieHandler  *handlers.CookieHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Metrics.Enabled {
		app.Metrics = metrics.New(prometheus.NewRegistry())
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if app.Reaper != nil {
		if err := app.Reaper.Start(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to start session reaper: %w", err)
		}
	}

	logger.Info().
		Str("engine", cfg.Browser.Engine).
		Str("cookies_backend", cfg.Cookies.Backend).
		Strs("vendors", app.VendorRegistry.IDs()).
		Bool("llm_enabled", app.LLMService != nil).
		Bool("metrics_enabled", app.Metrics != nil).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	a.Logger.Debug().Str("backend", a.Config.Cookies.Backend).Msg("Cookie storage initialized")
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	a.CookieService = cookies.NewService(a.StorageManager.CookieStorage(), a.Logger)

	engine, err := browser.NewEngine(&cfg.Browser, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create browser engine: %w", err)
	}
	a.Engine = engine

	// The engine launches lazily on the first session
	a.SessionManager = sessions.NewManager(
		engine,
		a.CookieService,
		interfaces.ContextOptions{UserAgent: cfg.Browser.UserAgent, Locale: cfg.Browser.Locale},
		a.Metrics,
		a.Logger,
	)

	if maxAge := common.ParseDurationOr(cfg.Sessions.MaxAge, 0); maxAge > 0 {
		a.Reaper = sessions.NewReaper(a.SessionManager, maxAge, cfg.Sessions.ReapSchedule, a.Logger)
	}

	a.EventService = events.NewService(
		common.ParseDurationOr(cfg.Events.HumanInputTimeout, 5*time.Minute),
		a.Metrics,
		a.Logger,
	)

	// Without an API key the resolver keeps to exact matches
	var completion interfaces.TextCompletionService
	if cfg.Claude.APIKey != "" || cfg.Gemini.APIKey != "" {
		a.LLMService = llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, a.Logger)
		completion = a.LLMService
	} else {
		a.Logger.Warn().Msg("No LLM API key configured, fuzzy candidate matching disabled")
	}
	a.Resolver = match.NewResolver(completion, cfg.Match.Model, cfg.Match.Temperature, a.Metrics, a.Logger)

	registry, err := vendors.NewRegistryFromConfig(&cfg.Vendors, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load vendors: %w", err)
	}
	a.VendorRegistry = registry

	a.SearchService = search.NewService(
		a.SessionManager,
		a.EventService,
		a.CookieService,
		a.VendorRegistry,
		a.Resolver,
		search.NewConfig(cfg),
		a.Metrics,
		a.Logger,
	)

	a.TransformService = transform.NewService(a.Logger)
	a.PageService = pages.NewService(a.SessionManager, a.TransformService, a.Logger)

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.SessionManager, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.SessionManager, a.EventService, a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.SearchService, a.VendorRegistry, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.PageService, a.Logger)
	a.CookieHandler = handlers.NewCookieHandler(a.CookieService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger)
}

// Close releases resources in dependency order. It is safe on a partially
// initialized App.
func (a *App) Close() error {
	if a.Reaper != nil {
		a.Reaper.Stop()
	}

	if a.SessionManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.SessionManager.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down sessions")
		} else {
			a.Logger.Info().Msg("Sessions closed")
		}
		cancel()
	} else if a.Engine != nil {
		if err := a.Engine.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close browser engine")
		}
	}

	if a.WSHandler != nil {
		a.WSHandler.CloseAll()
	}

	var storageErr error
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			storageErr = fmt.Errorf("failed to close storage: %w", err)
		} else {
			a.Logger.Info().Msg("Storage closed")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	return storageErr
}
