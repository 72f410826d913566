package server

import (
	"net/http"
	"strings"
)

// RouteHandler is a function type for HTTP handlers
type RouteHandler func(http.ResponseWriter, *http.Request)

// PathSuffixRouter routes a "{prefix}{id}{suffix}" path to a handler
type PathSuffixRouter struct {
	Suffix  string
	Handler RouteHandler
}

// RouteByPathSuffix routes requests based on path suffix. The segment between
// prefix and suffix must be a single non-empty id.
// Returns true if a route was matched and handled.
func RouteByPathSuffix(w http.ResponseWriter, r *http.Request, prefix string, routes []PathSuffixRouter) bool {
	path := r.URL.Path
	if len(path) <= len(prefix) || !strings.HasPrefix(path, prefix) {
		return false
	}

	rest := path[len(prefix):]
	for _, route := range routes {
		id, ok := strings.CutSuffix(rest, route.Suffix)
		if !ok || id == "" || strings.Contains(id, "/") {
			continue
		}
		route.Handler(w, r)
		return true
	}
	return false
}

// routeTemplates map id-bearing paths onto fixed labels for request metrics
var routeTemplates = []struct {
	prefix   string
	template string
}{
	{"/api/sessions/", "/api/sessions/{id}"},
	{"/api/search/", "/api/search/{id}"},
	{"/api/cookies/", "/api/cookies/{vendor}"},
	{"/sessions/", "/sessions/{id}"},
}

var knownPaths = map[string]bool{
	"/ws":          true,
	"/search":      true,
	"/sessions":    true,
	"/metrics":     true,
	"/api/vendors": true,
	"/api/cookies": true,
	"/api/health":  true,
	"/api/version": true,
}

var knownActions = map[string]bool{
	"/tasks":          true,
	"/human-input":    true,
	"/navigate":       true,
	"/url":            true,
	"/content":        true,
	"/html":           true,
	"/forms":          true,
	"/forms/fill":     true,
	"/forms/submit":   true,
	"/element/click":  true,
	"/element/select": true,
	"/execute":        true,
}

// routeTemplate returns the metrics label for a request path
func routeTemplate(path string) string {
	switch path {
	case "/sessions/list-all", "/sessions/clear-all", "/api/cookies/vendors":
		return path
	}

	for _, rt := range routeTemplates {
		rest, ok := strings.CutPrefix(path, rt.prefix)
		if !ok || rest == "" {
			continue
		}
		i := strings.Index(rest, "/")
		if i < 0 {
			return rt.template
		}
		if i > 0 && knownActions[rest[i:]] {
			return rt.template + rest[i:]
		}
		return "other"
	}

	if knownPaths[path] {
		return path
	}
	return "other"
}
