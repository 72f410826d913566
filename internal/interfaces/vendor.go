package interfaces

import (
	"context"

	"github.com/ternarybob/rateprobe/internal/models"
)

// VendorAdapter runs one vendor's site automation
type VendorAdapter interface {
	ID() string
	// Search drives the vendor site on task.Page() and reports through task.
	// Returning nil without a reported outcome is treated as no results.
	Search(ctx context.Context, task VendorTask) error
}

// VendorTask is the per-task handle an adapter works through
type VendorTask interface {
	SessionID() string
	Vendor() string
	Request() *models.SearchRequest
	Page() Page
	Resolver() MatchResolver

	Progress(ctx context.Context, step string)
	NoResults(ctx context.Context)
	Results(ctx context.Context, match *models.Candidate)
	// RequestHumanInput announces the request and blocks until a value is submitted
	RequestHumanInput(ctx context.Context) (string, error)
	// SaveCookies persists the session context cookies under this vendor
	SaveCookies(ctx context.Context) error
}

// VendorRegistry maps vendor ids to adapters
type VendorRegistry interface {
	Get(id string) (VendorAdapter, bool)
	IDs() []string
}

// MatchResolver picks the candidate that corresponds to the target hotel
type MatchResolver interface {
	Resolve(ctx context.Context, candidates []models.Candidate, targetName, targetAddress string) *models.Candidate
	ResolveName(ctx context.Context, names []string, targetName string) string
}
