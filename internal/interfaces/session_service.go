package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/rateprobe/internal/models"
)

// SessionManager owns every live session. Nothing else holds session state.
type SessionManager interface {
	CreateSession(ctx context.Context) (string, error)
	GetContext(id string) (BrowsingContext, error)
	OpenPage(ctx context.Context, id string) (Page, error)
	FirstPage(id string) (Page, error)
	ClosePage(ctx context.Context, id string, page Page) error
	ExpectPages(id string, n int) error
	ReleaseExpectedPage(ctx context.Context, id string)
	CloseSession(ctx context.Context, id string) error
	ListSessions() []models.SessionInfo
	CloseAllSessions(ctx context.Context) []models.SessionInfo
	CloseStale(ctx context.Context, maxAge time.Duration) int
	// OnClose registers a hook invoked after a session has been torn down
	OnClose(fn func(id string))
	Shutdown(ctx context.Context) error
}
