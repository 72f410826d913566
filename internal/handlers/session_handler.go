package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// SessionHandler manages browser sessions over HTTP
type SessionHandler struct {
	sessions interfaces.SessionManager
	events   interfaces.EventChannel
	logger   arbor.ILogger
}

func NewSessionHandler(sessions interfaces.SessionManager, events interfaces.EventChannel, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

// CreateHandler handles POST /sessions
func (h *SessionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id, err := h.sessions.CreateSession(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}

// DeleteHandler handles DELETE /sessions/{id}
func (h *SessionHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	parts := PathParts(r)
	if len(parts) != 2 || parts[1] == "" {
		WriteError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	if err := h.sessions.CloseSession(r.Context(), parts[1]); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "sessionDeleted"})
}

// ListAllHandler handles GET /sessions/list-all
func (h *SessionHandler) ListAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]models.SessionInfo{
		"sessions": h.sessions.ListSessions(),
	})
}

// ClearAllHandler handles GET /sessions/clear-all
func (h *SessionHandler) ClearAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	closed := h.sessions.CloseAllSessions(r.Context())
	h.logger.Info().Int("closed", len(closed)).Msg("All sessions cleared")
	WriteJSON(w, http.StatusOK, map[string][]models.SessionInfo{
		"sessions": closed,
	})
}

type humanInputRequest struct {
	Value string `json:"value"`
}

// HumanInputHandler handles POST /api/sessions/{id}/human-input
func (h *SessionHandler) HumanInputHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := APIPathID(r)
	if _, err := h.sessions.GetContext(id); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	var body humanInputRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(body.Value) == "" {
		WriteServiceError(w, h.logger, fmt.Errorf("%w: value is required", interfaces.ErrInvalidRequest))
		return
	}

	resolved := h.events.SubmitHumanInput(r.Context(), id, body.Value)
	h.logger.Info().Str("session_id", id).Bool("resolved", resolved).Msg("Human input submitted over HTTP")
	WriteJSON(w, http.StatusOK, map[string]bool{"resolved": resolved})
}

// APIPathID extracts {id} from /api/<resource>/{id}[/...]
func APIPathID(r *http.Request) string {
	parts := PathParts(r)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
