package sessions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/metrics"
	"github.com/ternarybob/rateprobe/internal/models"
)

type session struct {
	id        string
	context   interfaces.BrowsingContext
	pages     map[string]interfaces.Page
	order     []string
	expected  int
	createdAt time.Time
}

// Manager is the single owner of live sessions. Engine launch is lazy and
// serialized; everything else is guarded by one mutex that is never held
// across a browser round trip.
type Manager struct {
	engine  interfaces.BrowserEngine
	cookies interfaces.CookieReader
	options interfaces.ContextOptions
	metrics *metrics.Metrics
	logger  arbor.ILogger
	now     func() time.Time
	newID   func() string

	launchMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]*session
	hooks    []func(id string)
}

// NewManager creates a session manager. cookies and m may be nil.
func NewManager(engine interfaces.BrowserEngine, cookies interfaces.CookieReader, options interfaces.ContextOptions, m *metrics.Metrics, logger arbor.ILogger) *Manager {
	return &Manager{
		engine:   engine,
		cookies:  cookies,
		options:  options,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		newID:    common.NewSessionID,
		sessions: make(map[string]*session),
	}
}

func (m *Manager) ensureEngine(ctx context.Context) error {
	m.launchMu.Lock()
	defer m.launchMu.Unlock()

	if m.engine.Connected() {
		return nil
	}

	err := m.engine.Launch(ctx)
	if err == nil {
		return nil
	}
	m.logger.Warn().Err(err).Msg("Browser launch failed, retrying once")

	if err = m.engine.Launch(ctx); err != nil {
		if errors.Is(err, interfaces.ErrEngineUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", interfaces.ErrEngineUnavailable, err)
	}
	return nil
}

// CreateSession opens a new isolated browsing context seeded with saved cookies
func (m *Manager) CreateSession(ctx context.Context) (string, error) {
	if err := m.ensureEngine(ctx); err != nil {
		return "", err
	}

	bctx, err := m.engine.NewContext(ctx, m.options)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrEngineUnavailable, err)
	}

	if m.cookies != nil {
		if cookies, err := m.cookies.LoadAll(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to load saved cookies, continuing without them")
		} else if len(cookies) > 0 {
			if err := bctx.AddCookies(ctx, cookies); err != nil {
				m.logger.Warn().Err(err).Int("cookies", len(cookies)).Msg("Failed to seed session cookies")
			}
		}
	}

	s := &session{
		id:        m.newID(),
		context:   bctx,
		pages:     make(map[string]interfaces.Page),
		createdAt: m.now(),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.logger.Info().Str("session_id", s.id).Int("active_sessions", count).Msg("Session created")
	return s.id, nil
}

func (m *Manager) GetContext(id string) (interfaces.BrowsingContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, interfaces.ErrSessionNotFound
	}
	return s.context, nil
}

// OpenPage opens a tracked page and consumes one expected-page reservation
func (m *Manager) OpenPage(ctx context.Context, id string) (interfaces.Page, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, interfaces.ErrSessionNotFound
	}

	page, err := s.context.NewPage(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if current, ok := m.sessions[id]; !ok || current != s {
		m.mu.Unlock()
		// Session was closed while the page was opening
		_ = page.Close()
		return nil, interfaces.ErrSessionNotFound
	}
	s.pages[page.ID()] = page
	s.order = append(s.order, page.ID())
	if s.expected > 0 {
		s.expected--
	}
	m.mu.Unlock()

	m.logger.Debug().Str("session_id", id).Str("page_id", page.ID()).Msg("Page opened")
	return page, nil
}

// FirstPage returns the oldest open page of the session
func (m *Manager) FirstPage(id string) (interfaces.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, interfaces.ErrSessionNotFound
	}
	for _, pid := range s.order {
		if p, ok := s.pages[pid]; ok {
			return p, nil
		}
	}
	return nil, interfaces.ErrNoOpenPage
}

// ClosePage closes one page and tears the session down once nothing is open or expected
func (m *Manager) ClosePage(ctx context.Context, id string, page interfaces.Page) error {
	if page == nil {
		return nil
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	m.removePageLocked(s, page.ID())
	idle := len(s.pages) == 0 && s.expected == 0
	m.mu.Unlock()

	if err := page.Close(); err != nil && !errors.Is(err, interfaces.ErrPageClosed) {
		m.logger.Warn().Err(err).Str("session_id", id).Str("page_id", page.ID()).Msg("Failed to close page")
	}

	if idle {
		m.logger.Debug().Str("session_id", id).Msg("Last page closed, tearing session down")
		return m.CloseSession(ctx, id)
	}
	return nil
}

// ExpectPages reserves n pages that are about to be opened by dispatched tasks
func (m *Manager) ExpectPages(id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return interfaces.ErrSessionNotFound
	}
	if n > 0 {
		s.expected += n
	}
	return nil
}

// ReleaseExpectedPage drops a reservation whose page will never be opened
func (m *Manager) ReleaseExpectedPage(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if s.expected > 0 {
		s.expected--
	}
	idle := len(s.pages) == 0 && s.expected == 0
	m.mu.Unlock()

	if idle {
		_ = m.CloseSession(ctx, id)
	}
}

// CloseSession closes every page and the context. Unknown ids are a no-op.
func (m *Manager) CloseSession(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	hooks := append([]func(string){}, m.hooks...)
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.teardown(s)
	m.metrics.SessionClosed()

	for _, hook := range hooks {
		hook(id)
	}

	m.logger.Info().Str("session_id", id).Int("active_sessions", remaining).Msg("Session closed")
	return nil
}

func (m *Manager) teardown(s *session) {
	for _, pid := range s.order {
		p, ok := s.pages[pid]
		if !ok {
			continue
		}
		if err := p.Close(); err != nil && !errors.Is(err, interfaces.ErrPageClosed) {
			m.logger.Warn().Err(err).Str("session_id", s.id).Str("page_id", pid).Msg("Failed to close page")
		}
	}
	s.pages = nil
	s.order = nil

	if err := s.context.Close(); err != nil {
		m.logger.Warn().Err(err).Str("session_id", s.id).Msg("Failed to close browsing context")
	}
}

func (m *Manager) removePageLocked(s *session, pageID string) {
	if _, ok := s.pages[pageID]; !ok {
		return
	}
	delete(s.pages, pageID)
	for i, pid := range s.order {
		if pid == pageID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ListSessions reports every live session, oldest first
func (m *Manager) ListSessions() []models.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]models.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, infoLocked(s))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

func infoLocked(s *session) models.SessionInfo {
	pages := make([]string, 0, len(s.order))
	for _, pid := range s.order {
		if p, ok := s.pages[pid]; ok {
			pages = append(pages, p.LastURL())
		}
	}
	return models.SessionInfo{
		ID:        s.id,
		Pages:     pages,
		CreatedAt: s.createdAt,
	}
}

// CloseAllSessions closes every live session and returns what was closed
func (m *Manager) CloseAllSessions(ctx context.Context) []models.SessionInfo {
	infos := m.ListSessions()
	for _, info := range infos {
		_ = m.CloseSession(ctx, info.ID)
	}
	return infos
}

// CloseStale closes sessions older than maxAge and returns how many were closed
func (m *Manager) CloseStale(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	var stale []string
	for id, s := range m.sessions {
		if s.createdAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.logger.Info().Str("session_id", id).Dur("max_age", maxAge).Msg("Reaping stale session")
		_ = m.CloseSession(ctx, id)
	}
	return len(stale)
}

func (m *Manager) OnClose(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Shutdown closes every session and then the engine
func (m *Manager) Shutdown(ctx context.Context) error {
	closed := m.CloseAllSessions(ctx)
	if len(closed) > 0 {
		m.logger.Info().Int("sessions", len(closed)).Msg("Closed sessions on shutdown")
	}

	m.launchMu.Lock()
	defer m.launchMu.Unlock()
	if err := m.engine.Close(); err != nil {
		return fmt.Errorf("failed to close browser engine: %w", err)
	}
	return nil
}
