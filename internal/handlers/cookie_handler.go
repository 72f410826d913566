package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
)

// CookieHandler administers persisted vendor cookies
type CookieHandler struct {
	cookies interfaces.CookieStore
	logger  arbor.ILogger
}

func NewCookieHandler(cookies interfaces.CookieStore, logger arbor.ILogger) *CookieHandler {
	return &CookieHandler{
		cookies: cookies,
		logger:  logger,
	}
}

// ListHandler handles GET /api/cookies
func (h *CookieHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	summaries, err := h.cookies.Summaries(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"cookies": summaries})
}

// VendorsHandler handles GET /api/cookies/vendors
func (h *CookieHandler) VendorsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	vendors, err := h.cookies.Vendors(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]string{"vendors": vendors})
}

// DeleteHandler handles DELETE /api/cookies/{vendor}
func (h *CookieHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	vendor := APIPathID(r)
	if vendor == "" {
		WriteError(w, http.StatusBadRequest, "Vendor is required")
		return
	}

	if err := h.cookies.Delete(r.Context(), vendor); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	h.logger.Info().Str("vendor", vendor).Msg("Vendor cookies deleted")
	WriteSuccess(w, "Cookies deleted for "+vendor)
}
