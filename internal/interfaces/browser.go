package interfaces

import (
	"context"

	"github.com/ternarybob/rateprobe/internal/models"
)

// ContextOptions configures a freshly opened isolated browsing context
type ContextOptions struct {
	UserAgent string
	Locale    string
}

// BrowserEngine is a shared headless browser process
type BrowserEngine interface {
	// Launch starts the browser, or restarts it when the previous process is gone
	Launch(ctx context.Context) error
	// Connected reports whether the engine can currently serve new contexts
	Connected() bool
	// NewContext opens an isolated context (separate cookies and storage)
	NewContext(ctx context.Context, opts ContextOptions) (BrowsingContext, error)
	Close() error
}

// BrowsingContext is one isolated cookie/storage jar inside the engine
type BrowsingContext interface {
	NewPage(ctx context.Context) (Page, error)
	AddCookies(ctx context.Context, cookies []models.Cookie) error
	Cookies(ctx context.Context) ([]models.Cookie, error)
	Close() error
}

// Page is a single tab. Selectors are CSS selectors.
type Page interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	// LastURL returns the most recently observed URL without touching the browser
	LastURL() string
	HTML(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, selector string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Submit(ctx context.Context, selector string) error
	// Select sets the value of a <select> element and fires its change event
	Select(ctx context.Context, selector, value string) error
	Evaluate(ctx context.Context, script string, out interface{}) error
	// Close closes the tab. Closing an already closed page returns ErrPageClosed.
	Close() error
}
