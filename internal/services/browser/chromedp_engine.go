package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// ChromeDPEngine drives one shared Chrome process through chromedp.
// Each browsing context is an isolated Chrome browser context.
type ChromeDPEngine struct {
	config EngineConfig
	logger arbor.ILogger

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeDPEngine creates an engine that has not been launched yet
func NewChromeDPEngine(config EngineConfig, logger arbor.ILogger) *ChromeDPEngine {
	return &ChromeDPEngine{
		config: config,
		logger: logger,
	}
}

// Launch starts the browser process. Calling it while connected is a no-op.
func (e *ChromeDPEngine) Launch(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connectedLocked() {
		return nil
	}
	e.releaseLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.config.Headless),
		chromedp.Flag("disable-gpu", e.config.DisableGPU),
		chromedp.Flag("no-sandbox", e.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if e.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(e.config.UserAgent))
	}
	if e.config.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", e.config.Locale))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process and its context owns the browser lifetime,
	// so the startup timeout is enforced outside of it.
	if err := runFirst(ctx, browserCtx, e.config.StartupTimeout); err != nil {
		browserCancel()
		allocCancel()
		e.logger.Error().Err(err).Msg("Browser launch failed")
		return fmt.Errorf("%w: %v", interfaces.ErrEngineUnavailable, err)
	}

	e.allocCtx, e.allocCancel = allocCtx, allocCancel
	e.browserCtx, e.browserCancel = browserCtx, browserCancel

	e.logger.Info().
		Bool("headless", e.config.Headless).
		Str("locale", e.config.Locale).
		Msg("Browser launched (chromedp)")
	return nil
}

// Connected reports whether the browser process is alive
func (e *ChromeDPEngine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectedLocked()
}

func (e *ChromeDPEngine) connectedLocked() bool {
	return e.browserCtx != nil && e.browserCtx.Err() == nil
}

// NewContext creates an isolated browser context with its own cookie jar
func (e *ChromeDPEngine) NewContext(ctx context.Context, opts interfaces.ContextOptions) (interfaces.BrowsingContext, error) {
	e.mu.Lock()
	if !e.connectedLocked() {
		e.mu.Unlock()
		return nil, interfaces.ErrEngineUnavailable
	}
	browserCtx := e.browserCtx
	e.mu.Unlock()

	sessCtx, sessCancel := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
	if err := runFirst(ctx, sessCtx, e.config.StartupTimeout); err != nil {
		sessCancel()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	c := chromedp.FromContext(sessCtx)
	return &chromedpContext{
		engine:    e,
		ctx:       sessCtx,
		cancel:    sessCancel,
		contextID: c.BrowserContextID,
		opts:      opts,
		pages:     make(map[string]*chromedpPage),
	}, nil
}

// Close terminates the browser process and every context it owns
func (e *ChromeDPEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browserCtx != nil {
		if err := chromedp.Cancel(e.browserCtx); err != nil {
			e.logger.Warn().Err(err).Msg("Browser did not close cleanly")
		}
	}
	e.releaseLocked()
	e.logger.Debug().Msg("Browser closed (chromedp)")
	return nil
}

func (e *ChromeDPEngine) releaseLocked() {
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	e.browserCtx, e.browserCancel = nil, nil
	e.allocCtx, e.allocCancel = nil, nil
}

// runFirst performs the initial Run of a chromedp context without attaching
// a deadline to it, bounded by timeout and the caller context instead.
func runFirst(callerCtx, ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(ctx, actions...)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("browser did not respond within %s", timeout)
	case <-callerCtx.Done():
		return callerCtx.Err()
	}
}

type chromedpContext struct {
	engine    *ChromeDPEngine
	ctx       context.Context
	cancel    context.CancelFunc
	contextID cdp.BrowserContextID
	opts      interfaces.ContextOptions

	mu     sync.Mutex
	pages  map[string]*chromedpPage
	closed bool
}

func (c *chromedpContext) NewPage(ctx context.Context) (interfaces.Page, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, interfaces.ErrPageClosed
	}
	c.mu.Unlock()

	// Tabs created from the session context inherit its browser context
	tabCtx, tabCancel := chromedp.NewContext(c.ctx)

	var actions []chromedp.Action
	if c.opts.UserAgent != "" || c.opts.Locale != "" {
		ua := c.opts.UserAgent
		if ua == "" {
			ua = c.engine.config.UserAgent
		}
		if ua != "" {
			actions = append(actions, emulation.SetUserAgentOverride(ua).WithAcceptLanguage(acceptLanguage(c.opts.Locale)))
		}
	}
	if c.opts.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(c.opts.Locale))
	}

	if err := runFirst(ctx, tabCtx, c.engine.config.StartupTimeout, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	id := ""
	if t := chromedp.FromContext(tabCtx).Target; t != nil {
		id = string(t.TargetID)
	}

	page := &chromedpPage{
		id:      id,
		ctx:     tabCtx,
		cancel:  tabCancel,
		timeout: c.engine.config.NavigationTimeout,
		owner:   c,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		tabCancel()
		return nil, interfaces.ErrPageClosed
	}
	c.pages[id] = page
	return page, nil
}

func (c *chromedpContext) AddCookies(ctx context.Context, cookies []models.Cookie) error {
	params := toCDPCookieParams(cookies, time.Now())
	if len(params) == 0 {
		return nil
	}

	opCtx, cancel := operationContext(c.ctx, ctx, c.engine.config.NavigationTimeout)
	defer cancel()

	return chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).
			WithBrowserContextID(c.contextID).
			Do(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
	}))
}

func (c *chromedpContext) Cookies(ctx context.Context) ([]models.Cookie, error) {
	opCtx, cancel := operationContext(c.ctx, ctx, c.engine.config.NavigationTimeout)
	defer cancel()

	var result []models.Cookie
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().
			WithBrowserContextID(c.contextID).
			Do(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
		if err != nil {
			return err
		}
		result = fromCDPCookies(cookies)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return result, nil
}

// Close disposes the browser context and every tab in it. Idempotent.
func (c *chromedpContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := c.pages
	c.pages = nil
	c.mu.Unlock()

	for _, p := range pages {
		p.markClosed()
	}
	if err := chromedp.Cancel(c.ctx); err != nil {
		c.cancel()
		return fmt.Errorf("failed to dispose browser context: %w", err)
	}
	return nil
}

func (c *chromedpContext) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, id)
}

type chromedpPage struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	owner   *chromedpContext

	mu      sync.Mutex
	closed  bool
	lastURL string
}

func (p *chromedpPage) ID() string {
	return p.id
}

func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.isClosed() {
		return interfaces.ErrPageClosed
	}
	opCtx, cancel := operationContext(p.ctx, ctx, p.timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	var location string
	if err := p.run(ctx, chromedp.Navigate(url), chromedp.Location(&location)); err != nil {
		if err == interfaces.ErrPageClosed {
			return err
		}
		return fmt.Errorf("%w: %s: %v", interfaces.ErrNavigation, url, err)
	}
	p.setLastURL(location)
	return nil
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	p.setLastURL(location)
	return location, nil
}

func (p *chromedpPage) LastURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastURL
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if err == interfaces.ErrPageClosed {
			return err
		}
		return fmt.Errorf("%w: waiting for %q: %v", interfaces.ErrNavigation, selector, err)
	}
	return nil
}

func (p *chromedpPage) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.AtLeast(0), chromedp.ByQuery)); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromedpPage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromedpPage) Submit(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Submit(selector, chromedp.ByQuery))
}

func (p *chromedpPage) Select(ctx context.Context, selector, value string) error {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	return p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%s).dispatchEvent(new Event("change", {bubbles: true}))`, quoted), nil),
	)
}

func (p *chromedpPage) Evaluate(ctx context.Context, script string, out interface{}) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

// Close closes the tab. A second call returns ErrPageClosed.
func (p *chromedpPage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return interfaces.ErrPageClosed
	}
	p.closed = true
	p.mu.Unlock()

	p.owner.forget(p.id)
	if err := chromedp.Cancel(p.ctx); err != nil {
		p.cancel()
	}
	return nil
}

func (p *chromedpPage) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}

func (p *chromedpPage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *chromedpPage) setLastURL(url string) {
	if url == "" {
		return
	}
	p.mu.Lock()
	p.lastURL = url
	p.mu.Unlock()
}
