package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// StatusFor maps service errors to HTTP status codes. A failed page action
// wins over the navigation error it may wrap.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrNoOpenPage):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, interfaces.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrPageAction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, interfaces.ErrNavigation):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteServiceError writes err with its mapped status. Server-side failures are logged.
func WriteServiceError(w http.ResponseWriter, logger arbor.ILogger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	WriteError(w, status, err.Error())
}

// DecodeJSON reads a JSON body into v. Errors wrap ErrInvalidRequest.
func DecodeJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", interfaces.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: malformed JSON: %v", interfaces.ErrInvalidRequest, err)
	}
	return nil
}

// PathParts splits the request path into its non-empty segments.
// "/api/sessions/abc/url" -> ["api", "sessions", "abc", "url"]
func PathParts(r *http.Request) []string {
	trimmed := strings.Trim(r.URL.Path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
