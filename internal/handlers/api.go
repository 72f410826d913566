package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
)

type APIHandler struct {
	sessions interfaces.SessionManager
	logger   arbor.ILogger
}

func NewAPIHandler(sessions interfaces.SessionManager, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, common.CurrentBuild())
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": len(h.sessions.ListSessions()),
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"status":  "error",
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
