package interfaces

import (
	"context"

	"github.com/ternarybob/rateprobe/internal/models"
)

// SearchService dispatches vendor searches against a fresh session
type SearchService interface {
	// Search validates the request, starts one task per known vendor and returns without waiting
	Search(ctx context.Context, request *models.SearchRequest) (*models.SearchResponse, error)
	// Tasks returns the task states of a live session
	Tasks(sessionID string) ([]models.SearchTask, error)
}
