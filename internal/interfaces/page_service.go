package interfaces

import (
	"context"

	"github.com/ternarybob/rateprobe/internal/models"
)

// PageService inspects and drives the first page of a live session
type PageService interface {
	Navigate(ctx context.Context, sessionID, url string) (string, error)
	URL(ctx context.Context, sessionID string) (string, error)
	Content(ctx context.Context, sessionID string) (*models.PageContent, error)
	HTML(ctx context.Context, sessionID string) (string, error)
	Forms(ctx context.Context, sessionID string) ([]models.PageForm, error)
	FillForm(ctx context.Context, sessionID, form string, fields map[string]string) error
	// SubmitForm returns the URL the page is on afterwards
	SubmitForm(ctx context.Context, sessionID, form string) (string, error)
	Click(ctx context.Context, sessionID, selector string) error
	Select(ctx context.Context, sessionID, selector, value string) error
	Execute(ctx context.Context, sessionID, script string) (interface{}, error)
}
