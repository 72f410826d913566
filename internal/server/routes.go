package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket event channel
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Sessions
	mux.HandleFunc("/sessions", s.app.SessionHandler.CreateHandler)
	mux.HandleFunc("/sessions/list-all", s.app.SessionHandler.ListAllHandler)
	mux.HandleFunc("/sessions/clear-all", s.app.SessionHandler.ClearAllHandler)
	mux.HandleFunc("/sessions/", s.app.SessionHandler.DeleteHandler) // DELETE /{id}

	// Search
	mux.HandleFunc("/search", s.app.SearchHandler.SearchHandler)
	mux.HandleFunc("/api/search/", s.handleSearchRoutes)
	mux.HandleFunc("/api/vendors", s.app.SearchHandler.VendorsHandler)

	// Per-session page and human input actions
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)

	// Cookies
	mux.HandleFunc("/api/cookies", s.app.CookieHandler.ListHandler)
	mux.HandleFunc("/api/cookies/vendors", s.app.CookieHandler.VendorsHandler)
	mux.HandleFunc("/api/cookies/", s.app.CookieHandler.DeleteHandler)

	// System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	if s.app.Metrics != nil {
		mux.Handle(s.metricsPath(), s.app.Metrics.Handler())
	}

	// 404 for unmatched API routes (must be last)
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSearchRoutes dispatches /api/search/{sessionId}/...
func (s *Server) handleSearchRoutes(w http.ResponseWriter, r *http.Request) {
	if RouteByPathSuffix(w, r, "/api/search/", []PathSuffixRouter{
		{Suffix: "/tasks", Handler: s.app.SearchHandler.TasksHandler},
	}) {
		return
	}
	s.app.APIHandler.NotFoundHandler(w, r)
}

// handleSessionRoutes dispatches /api/sessions/{id}/{action}
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if RouteByPathSuffix(w, r, "/api/sessions/", []PathSuffixRouter{
		{Suffix: "/human-input", Handler: s.app.SessionHandler.HumanInputHandler},
		{Suffix: "/navigate", Handler: s.app.PageHandler.NavigateHandler},
		{Suffix: "/url", Handler: s.app.PageHandler.URLHandler},
		{Suffix: "/content", Handler: s.app.PageHandler.ContentHandler},
		{Suffix: "/html", Handler: s.app.PageHandler.HTMLHandler},
		{Suffix: "/forms", Handler: s.app.PageHandler.FormsHandler},
		{Suffix: "/forms/fill", Handler: s.app.PageHandler.FillFormHandler},
		{Suffix: "/forms/submit", Handler: s.app.PageHandler.SubmitFormHandler},
		{Suffix: "/element/click", Handler: s.app.PageHandler.ClickHandler},
		{Suffix: "/element/select", Handler: s.app.PageHandler.SelectHandler},
		{Suffix: "/execute", Handler: s.app.PageHandler.ExecuteHandler},
	}) {
		return
	}
	s.app.APIHandler.NotFoundHandler(w, r)
}

func (s *Server) metricsPath() string {
	path := s.app.Config.Metrics.Path
	if path == "" {
		return "/metrics"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
