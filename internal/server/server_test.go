package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/app"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/handlers"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/metrics"
	"github.com/ternarybob/rateprobe/internal/services/browser/browsertest"
	"github.com/ternarybob/rateprobe/internal/services/cookies"
	"github.com/ternarybob/rateprobe/internal/services/events"
	"github.com/ternarybob/rateprobe/internal/services/match"
	"github.com/ternarybob/rateprobe/internal/services/pages"
	"github.com/ternarybob/rateprobe/internal/services/search"
	"github.com/ternarybob/rateprobe/internal/services/sessions"
	"github.com/ternarybob/rateprobe/internal/services/transform"
	"github.com/ternarybob/rateprobe/internal/services/vendors"
	"github.com/ternarybob/rateprobe/internal/storage/filesystem"
)

// heldAdapter reports no results once release is closed
type heldAdapter struct {
	id      string
	release chan struct{}
}

func (a *heldAdapter) ID() string {
	return a.id
}

func (a *heldAdapter) Search(ctx context.Context, task interfaces.VendorTask) error {
	select {
	case <-a.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	task.NoResults(ctx)
	return nil
}

func newTestServer(t *testing.T, adapters ...interfaces.VendorAdapter) *Server {
	t.Helper()
	logger := arbor.NewLogger()

	cfg := common.NewDefaultConfig()
	storage, err := filesystem.NewManager(t.TempDir(), logger)
	require.NoError(t, err)

	registry := vendors.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}

	a := &app.App{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics.New(prometheus.NewRegistry()),
		StorageManager: storage,
		Engine:         browsertest.NewEngine(),
		VendorRegistry: registry,
	}
	a.CookieService = cookies.NewService(storage.CookieStorage(), logger)
	a.SessionManager = sessions.NewManager(a.Engine, a.CookieService, interfaces.ContextOptions{}, a.Metrics, logger)
	a.EventService = events.NewService(time.Second, a.Metrics, logger)
	a.Resolver = match.NewResolver(nil, "", 0, a.Metrics, logger)
	a.SearchService = search.NewService(a.SessionManager, a.EventService, a.CookieService, registry, a.Resolver, search.NewConfig(cfg), a.Metrics, logger)
	a.TransformService = transform.NewService(logger)
	a.PageService = pages.NewService(a.SessionManager, a.TransformService, logger)

	a.APIHandler = handlers.NewAPIHandler(a.SessionManager, logger)
	a.SessionHandler = handlers.NewSessionHandler(a.SessionManager, a.EventService, logger)
	a.SearchHandler = handlers.NewSearchHandler(a.SearchService, registry, logger)
	a.PageHandler = handlers.NewPageHandler(a.PageService, logger)
	a.CookieHandler = handlers.NewCookieHandler(a.CookieService, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger)

	t.Cleanup(func() { _ = a.Close() })
	return New(a)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	id, _ := body["sessionId"].(string)
	require.NotEmpty(t, id)

	rec, body = do(t, s, http.MethodGet, "/sessions/list-all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["sessions"], 1)

	rec, _ = do(t, s, http.MethodGet, "/api/sessions/"+id+"/url", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "a fresh session has no page")

	rec, body = do(t, s, http.MethodDelete, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sessionDeleted", body["status"])

	// Deleting again is a no-op
	rec, body = do(t, s, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sessionDeleted", body["status"])

	rec, _ = do(t, s, http.MethodGet, "/sessions/clear-all", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchAndTasksRoutes(t *testing.T) {
	adapter := &heldAdapter{id: "held", release: make(chan struct{})}
	s := newTestServer(t, adapter)
	defer close(adapter.release)

	payload := `{
		"hotel": {"displayName": "Hotel Lumen", "formattedAddress": "1 Rue de Rivoli, Paris"},
		"dateRanges": [{"from": "2026-03-01", "to": "2026-03-04"}],
		"adults": 2,
		"platforms": ["held"]
	}`
	rec, body := do(t, s, http.MethodPost, "/search", payload)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id, _ := body["sessionId"].(string)
	require.NotEmpty(t, id)

	rec, body = do(t, s, http.MethodGet, "/api/search/"+id+"/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tasks, ok := body["tasks"].([]interface{})
	require.True(t, ok)
	require.Len(t, tasks, 1)
	assert.Equal(t, "held", tasks[0].(map[string]interface{})["platform"])

	rec, _ = do(t, s, http.MethodGet, "/api/vendors", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidSearchRejected(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/search", `{"hotel": {}, "platforms": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["status"])
}

func TestUnknownAPIRoutes(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/nothing",
		"/api/sessions/abc/unknown",
		"/api/search/abc",
	} {
		rec, _ := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodOptions, "/search", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodGet, "/api/health", "")

	rec, _ := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/health",status="200"}`)
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t)
	s.app.Config.Server.Host = "127.0.0.1"
	s.app.Config.Server.Port = 0
	s = New(s.app)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done, "a graceful shutdown is not an error")
}

func TestServerTimeoutsFromConfig(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, 90*time.Second, s.server.WriteTimeout)

	s.app.Config.Server.WriteTimeout = "2m"
	s.app.Config.Server.ReadTimeout = ""
	s = New(s.app)
	assert.Equal(t, 2*time.Minute, s.server.WriteTimeout)
	assert.Equal(t, 15*time.Second, s.server.ReadTimeout)
}

func TestRouteTemplate(t *testing.T) {
	cases := map[string]string{
		"/sessions":                    "/sessions",
		"/sessions/abc":                "/sessions/{id}",
		"/sessions/list-all":           "/sessions/list-all",
		"/api/sessions/abc/content":    "/api/sessions/{id}/content",
		"/api/sessions/abc/whatever":   "other",
		"/api/search/abc/tasks":        "/api/search/{id}/tasks",
		"/api/cookies/booking":         "/api/cookies/{vendor}",
		"/api/health":                  "/api/health",
		"/favicon.ico":                 "other",
		"/api/sessions/abc/x/url":      "other",
		"/api/sessions/abc/forms/fill": "/api/sessions/{id}/forms/fill",
		"/api/cookies":                 "/api/cookies",
	}
	for path, want := range cases {
		assert.Equal(t, want, routeTemplate(path), path)
	}
}

func TestRouteByPathSuffix(t *testing.T) {
	var hit string
	routes := []PathSuffixRouter{
		{Suffix: "/url", Handler: func(w http.ResponseWriter, r *http.Request) { hit = "url" }},
	}

	cases := map[string]bool{
		"/api/sessions/abc/url":   true,
		"/api/sessions//url":      false,
		"/api/sessions/a/b/url":   false,
		"/api/sessions/abc/other": false,
	}
	for path, want := range cases {
		hit = ""
		req := httptest.NewRequest(http.MethodGet, path, nil)
		got := RouteByPathSuffix(httptest.NewRecorder(), req, "/api/sessions/", routes)
		assert.Equal(t, want, got, path)
		assert.Equal(t, want, hit == "url", path)
	}
}
