// Package browsertest provides an in-memory browser engine for tests.
// Pages render HTML from a route table and selectors are evaluated with goquery.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// Engine is a fake interfaces.BrowserEngine
type Engine struct {
	mu sync.Mutex

	// LaunchErrs is consumed one entry per Launch call
	LaunchErrs    []error
	NewContextErr error
	NewPageErr    error

	// Routes maps a URL to the HTML served for it. Unknown URLs render an empty body.
	Routes map[string]string
	// NavigateErrs fails navigation to the given URLs
	NavigateErrs map[string]error
	// OnSubmit and OnClick may return a URL to navigate to after the action
	OnSubmit func(p *Page, selector string) string
	OnClick  func(p *Page, selector string) string
	// Eval maps a script to the value decoded into Evaluate's out
	Eval map[string]interface{}

	Launches int
	launched bool
	closed   bool
	contexts []*Context
	pageSeq  int
}

func NewEngine() *Engine {
	return &Engine{
		Routes:       make(map[string]string),
		NavigateErrs: make(map[string]error),
		Eval:         make(map[string]interface{}),
	}
}

func (e *Engine) Launch(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Launches++
	if len(e.LaunchErrs) > 0 {
		err := e.LaunchErrs[0]
		e.LaunchErrs = e.LaunchErrs[1:]
		if err != nil {
			return err
		}
	}
	e.launched = true
	e.closed = false
	return nil
}

func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launched && !e.closed
}

// Disconnect simulates a crashed browser process
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launched = false
}

func (e *Engine) NewContext(ctx context.Context, opts interfaces.ContextOptions) (interfaces.BrowsingContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.NewContextErr != nil {
		return nil, e.NewContextErr
	}
	c := &Context{engine: e, Options: opts}
	e.contexts = append(e.contexts, c)
	return c, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Contexts returns every context created so far
func (e *Engine) Contexts() []*Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Context(nil), e.contexts...)
}

func (e *Engine) route(url string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.NavigateErrs[url]; ok {
		return "", err
	}
	return e.Routes[url], nil
}

// Context is a fake interfaces.BrowsingContext
type Context struct {
	engine  *Engine
	Options interfaces.ContextOptions

	mu         sync.Mutex
	cookies    []models.Cookie
	pages      []*Page
	closeCalls int
}

func (c *Context) NewPage(ctx context.Context) (interfaces.Page, error) {
	c.engine.mu.Lock()
	if err := c.engine.NewPageErr; err != nil {
		c.engine.mu.Unlock()
		return nil, err
	}
	c.engine.pageSeq++
	id := fmt.Sprintf("page-%d", c.engine.pageSeq)
	c.engine.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeCalls > 0 {
		return nil, interfaces.ErrPageClosed
	}
	p := &Page{
		id:       id,
		context:  c,
		url:      "about:blank",
		Filled:   make(map[string]string),
		Selected: make(map[string]string),
	}
	c.pages = append(c.pages, p)
	return p, nil
}

func (c *Context) AddCookies(ctx context.Context, cookies []models.Cookie) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = append(c.cookies, cookies...)
	return nil
}

func (c *Context) Cookies(ctx context.Context) ([]models.Cookie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Cookie(nil), c.cookies...), nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

// CloseCalls counts Close invocations
func (c *Context) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// Pages returns every page opened in the context
func (c *Context) Pages() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Page(nil), c.pages...)
}

// Page is a fake interfaces.Page
type Page struct {
	id      string
	context *Context

	mu       sync.Mutex
	url      string
	html     string
	closed   bool
	Filled   map[string]string
	Selected map[string]string
	Clicked  []string
}

func (p *Page) ID() string {
	return p.id
}

func (p *Page) alive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return interfaces.ErrPageClosed
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.alive(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	html, err := p.context.engine.route(url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrNavigation, url, err)
	}
	p.mu.Lock()
	p.url = url
	p.html = html
	p.mu.Unlock()
	return nil
}

// SetHTML replaces the current document
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := p.alive(); err != nil {
		return "", err
	}
	return p.LastURL(), nil
}

func (p *Page) LastURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := p.alive(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *Page) count(selector string) (int, error) {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	if err := p.alive(); err != nil {
		return err
	}
	n, err := p.count(selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: waiting for %q: not found", interfaces.ErrNavigation, selector)
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	if err := p.alive(); err != nil {
		return false, err
	}
	n, err := p.count(selector)
	return n > 0, err
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.alive(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Clicked = append(p.Clicked, selector)
	p.mu.Unlock()

	if hook := p.context.engine.OnClick; hook != nil {
		if next := hook(p, selector); next != "" {
			return p.Navigate(ctx, next)
		}
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	if err := p.alive(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Filled[selector] = value
	return nil
}

// Value returns what was last filled into selector
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Filled[selector]
}

func (p *Page) Submit(ctx context.Context, selector string) error {
	if err := p.alive(); err != nil {
		return err
	}
	if hook := p.context.engine.OnSubmit; hook != nil {
		if next := hook(p, selector); next != "" {
			return p.Navigate(ctx, next)
		}
	}
	return nil
}

// Select fails unless selector matches an element in the current document
func (p *Page) Select(ctx context.Context, selector, value string) error {
	if err := p.alive(); err != nil {
		return err
	}
	n, err := p.count(selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("select %q: not found", selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Selected[selector] = value
	return nil
}

func (p *Page) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := p.alive(); err != nil {
		return err
	}
	p.context.engine.mu.Lock()
	value, ok := p.context.engine.Eval[script]
	p.context.engine.mu.Unlock()
	if !ok || out == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return interfaces.ErrPageClosed
	}
	p.closed = true
	return nil
}

// Closed reports whether the page has been closed
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
