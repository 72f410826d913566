package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// RodEngine drives one shared Chrome process through go-rod.
// Browsing contexts map to rod incognito browsers.
type RodEngine struct {
	config EngineConfig
	logger arbor.ILogger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodEngine creates an engine that has not been launched yet
func NewRodEngine(config EngineConfig, logger arbor.ILogger) *RodEngine {
	return &RodEngine{
		config: config,
		logger: logger,
	}
}

func (e *RodEngine) Launch(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connectedLocked() {
		return nil
	}
	e.releaseLocked()

	l := launcher.New().
		Headless(e.config.Headless).
		NoSandbox(e.config.NoSandbox).
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")
	if e.config.DisableGPU {
		l = l.Set("disable-gpu")
	}
	if e.config.UserAgent != "" {
		l = l.Set("user-agent", e.config.UserAgent)
	}
	if e.config.Locale != "" {
		l = l.Set("lang", e.config.Locale)
	}
	l = l.Context(ctx)

	type launched struct {
		url string
		err error
	}
	done := make(chan launched, 1)
	go func() {
		u, err := l.Launch()
		done <- launched{url: u, err: err}
	}()

	var controlURL string
	select {
	case res := <-done:
		if res.err != nil {
			e.logger.Error().Err(res.err).Msg("Browser launch failed")
			return fmt.Errorf("%w: %v", interfaces.ErrEngineUnavailable, res.err)
		}
		controlURL = res.url
	case <-time.After(e.config.StartupTimeout):
		l.Kill()
		return fmt.Errorf("%w: browser did not start within %s", interfaces.ErrEngineUnavailable, e.config.StartupTimeout)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: %v", interfaces.ErrEngineUnavailable, err)
	}

	e.launcher = l
	e.browser = browser

	e.logger.Info().
		Bool("headless", e.config.Headless).
		Str("locale", e.config.Locale).
		Msg("Browser launched (rod)")
	return nil
}

func (e *RodEngine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectedLocked()
}

func (e *RodEngine) connectedLocked() bool {
	if e.browser == nil {
		return false
	}
	_, err := e.browser.Version()
	return err == nil
}

func (e *RodEngine) NewContext(ctx context.Context, opts interfaces.ContextOptions) (interfaces.BrowsingContext, error) {
	e.mu.Lock()
	browser := e.browser
	e.mu.Unlock()
	if browser == nil {
		return nil, interfaces.ErrEngineUnavailable
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &rodContext{
		engine:  e,
		browser: incognito,
		opts:    opts,
	}, nil
}

func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Browser did not close cleanly")
		}
	}
	e.releaseLocked()
	e.logger.Debug().Msg("Browser closed (rod)")
	return nil
}

func (e *RodEngine) releaseLocked() {
	if e.launcher != nil {
		e.launcher.Kill()
	}
	e.launcher = nil
	e.browser = nil
}

type rodContext struct {
	engine  *RodEngine
	browser *rod.Browser
	opts    interfaces.ContextOptions

	mu     sync.Mutex
	closed bool
}

func (c *rodContext) NewPage(ctx context.Context) (interfaces.Page, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, interfaces.ErrPageClosed
	}

	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	// Detach the page from the creation context
	page = page.Context(context.Background())

	ua := c.opts.UserAgent
	if ua == "" {
		ua = c.engine.config.UserAgent
	}
	if ua != "" {
		override := proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: acceptLanguage(c.opts.Locale),
		}
		if err := override.Call(page); err != nil {
			c.engine.logger.Warn().Err(err).Msg("Failed to apply user agent override")
		}
	}
	if c.opts.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: c.opts.Locale}).Call(page); err != nil {
			c.engine.logger.Warn().Err(err).Str("locale", c.opts.Locale).Msg("Failed to apply locale override")
		}
	}

	return &rodPage{
		page:    page,
		timeout: c.engine.config.NavigationTimeout,
	}, nil
}

func (c *rodContext) AddCookies(ctx context.Context, cookies []models.Cookie) error {
	params := toRodCookieParams(cookies, time.Now())
	if len(params) == 0 {
		return nil
	}
	return c.browser.Context(ctx).SetCookies(params)
}

func (c *rodContext) Cookies(ctx context.Context) ([]models.Cookie, error) {
	cookies, err := c.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return fromRodCookies(cookies), nil
}

// Close disposes the incognito context. Idempotent.
func (c *rodContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.browser.Close(); err != nil {
		return fmt.Errorf("failed to dispose browser context: %w", err)
	}
	return nil
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	lastURL string
}

func (p *rodPage) ID() string {
	return string(p.page.TargetID)
}

func (p *rodPage) bound(ctx context.Context) (*rod.Page, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, interfaces.ErrPageClosed
	}
	return p.page.Context(ctx).Timeout(p.timeout), nil
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page, err := p.bound(ctx)
	if err != nil {
		return err
	}
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrNavigation, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrNavigation, url, err)
	}
	if info, err := page.Info(); err == nil {
		p.setLastURL(info.URL)
	}
	return nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	page, err := p.bound(ctx)
	if err != nil {
		return "", err
	}
	info, err := page.Info()
	if err != nil {
		return "", err
	}
	p.setLastURL(info.URL)
	return info.URL, nil
}

func (p *rodPage) LastURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastURL
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	page, err := p.bound(ctx)
	if err != nil {
		return "", err
	}
	return page.HTML()
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string) error {
	page, err := p.bound(ctx)
	if err != nil {
		return err
	}
	el, err := page.Element(selector)
	if err == nil {
		err = el.WaitVisible()
	}
	if err != nil {
		return fmt.Errorf("%w: waiting for %q: %v", interfaces.ErrNavigation, selector, err)
	}
	return nil
}

func (p *rodPage) Exists(ctx context.Context, selector string) (bool, error) {
	page, err := p.bound(ctx)
	if err != nil {
		return false, err
	}
	has, _, err := page.Has(selector)
	return has, err
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	page, err := p.bound(ctx)
	if err != nil {
		return err
	}
	el, err := page.Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Fill(ctx context.Context, selector, value string) error {
	page, err := p.bound(ctx)
	if err != nil {
		return err
	}
	el, err := page.Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (p *rodPage) Submit(ctx context.Context, selector string) error {
	page, err := p.bound(ctx)
	if err != nil {
		return err
	}
	el, err := page.Element(selector)
	if err != nil {
		return err
	}
	_, err = el.Eval(`() => { const f = this.form || this; f.requestSubmit ? f.requestSubmit() : f.submit() }`)
	return err
}

func (p *rodPage) Select(ctx context.Context, selector, value string) error {
	page, err := p.bound(ctx)
	if err != nil {
		return err
	}
	el, err := page.Element(selector)
	if err != nil {
		return err
	}
	_, err = el.Eval(`(v) => { this.value = v; this.dispatchEvent(new Event("change", {bubbles: true})) }`, value)
	return err
}

func (p *rodPage) Evaluate(ctx context.Context, script string, out interface{}) error {
	page, err := p.bound(ctx)
	if err != nil {
		return err
	}
	res, err := page.Eval(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.Value.Unmarshal(out)
}

func (p *rodPage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return interfaces.ErrPageClosed
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.page.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}

func (p *rodPage) setLastURL(url string) {
	if url == "" {
		return
	}
	p.mu.Lock()
	p.lastURL = url
	p.mu.Unlock()
}
