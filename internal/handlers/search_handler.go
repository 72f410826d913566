package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// SearchHandler dispatches hotel searches
type SearchHandler struct {
	searchService interfaces.SearchService
	vendors       interfaces.VendorRegistry
	logger        arbor.ILogger
}

func NewSearchHandler(searchService interfaces.SearchService, vendors interfaces.VendorRegistry, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		vendors:       vendors,
		logger:        logger,
	}
}

// SearchHandler handles POST /search. Results arrive over the event channel.
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.SearchRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	resp, err := h.searchService.Search(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, resp)
}

// TasksHandler handles GET /api/search/{sessionId}/tasks
func (h *SearchHandler) TasksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := APIPathID(r)
	tasks, err := h.searchService.Tasks(sessionID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": sessionID,
		"tasks":     tasks,
	})
}

// VendorsHandler handles GET /api/vendors
func (h *SearchHandler) VendorsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]string{"vendors": h.vendors.IDs()})
}
