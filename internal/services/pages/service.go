package pages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
	"github.com/ternarybob/rateprobe/internal/services/transform"
)

// Service operates on the oldest open page of a session
type Service struct {
	sessions  interfaces.SessionManager
	transform *transform.Service
	logger    arbor.ILogger
}

func NewService(sessions interfaces.SessionManager, transform *transform.Service, logger arbor.ILogger) *Service {
	return &Service{
		sessions:  sessions,
		transform: transform,
		logger:    logger,
	}
}

// Navigate loads target on the session's page, opening one if the session has none.
// Returns the URL the page ended up on.
func (s *Service) Navigate(ctx context.Context, sessionID, target string) (string, error) {
	u, err := url.ParseRequestURI(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url must be an absolute http(s) URL", interfaces.ErrInvalidRequest)
	}

	page, err := s.sessions.FirstPage(sessionID)
	if errors.Is(err, interfaces.ErrNoOpenPage) {
		page, err = s.sessions.OpenPage(ctx, sessionID)
	}
	if err != nil {
		return "", err
	}

	if err := page.Navigate(ctx, target); err != nil {
		return "", err
	}
	s.logger.Debug().Str("session_id", sessionID).Str("url", target).Msg("Session page navigated")
	return s.currentURL(ctx, page), nil
}

// URL returns the current URL of the session's page
func (s *Service) URL(ctx context.Context, sessionID string) (string, error) {
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return "", err
	}
	return s.currentURL(ctx, page), nil
}

// Content returns the session's page as markdown plus its links
func (s *Service) Content(ctx context.Context, sessionID string) (*models.PageContent, error) {
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return nil, err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	pageURL := s.currentURL(ctx, page)

	markdown, err := s.transform.HTMLToMarkdown(html, pageURL)
	if err != nil {
		return nil, err
	}
	links, err := s.transform.ExtractLinks(html, pageURL)
	if err != nil {
		return nil, err
	}

	return &models.PageContent{
		URL:      pageURL,
		Markdown: markdown,
		Links:    links,
	}, nil
}

// HTML returns the raw document of the session's page
func (s *Service) HTML(ctx context.Context, sessionID string) (string, error) {
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return "", err
	}
	return page.HTML(ctx)
}

// Forms lists the forms on the session's page with their named controls
func (s *Service) Forms(ctx context.Context, sessionID string) ([]models.PageForm, error) {
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return nil, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ListForms(html, s.currentURL(ctx, page))
}

// FillForm types each value into the control of form with that name attribute
func (s *Service) FillForm(ctx context.Context, sessionID, form string, fields map[string]string) error {
	if form == "" || len(fields) == 0 {
		return fmt.Errorf("%w: formSelector and fields are required", interfaces.ErrInvalidRequest)
	}
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		selector := fmt.Sprintf("%s [name=%s]", form, cssString(name))
		if err := page.Fill(ctx, selector, fields[name]); err != nil {
			return fmt.Errorf("%w: fill %s: %w", interfaces.ErrPageAction, selector, err)
		}
	}
	s.logger.Debug().Str("session_id", sessionID).Str("form", form).Int("fields", len(names)).Msg("Form fields filled")
	return nil
}

// SubmitForm clicks the form's submit control, or submits the form directly when it has none
func (s *Service) SubmitForm(ctx context.Context, sessionID, form string) (string, error) {
	if form == "" {
		return "", fmt.Errorf("%w: formSelector is required", interfaces.ErrInvalidRequest)
	}
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return "", err
	}

	button := form + ` [type="submit"]`
	hasButton, err := page.Exists(ctx, button)
	if err != nil {
		return "", fmt.Errorf("%w: submit %s: %w", interfaces.ErrPageAction, form, err)
	}
	if hasButton {
		err = page.Click(ctx, button)
	} else {
		err = page.Submit(ctx, form)
	}
	if err != nil {
		return "", fmt.Errorf("%w: submit %s: %w", interfaces.ErrPageAction, form, err)
	}

	if err := page.WaitVisible(ctx, "body"); err != nil {
		s.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Page body not visible after submit")
	}
	return s.currentURL(ctx, page), nil
}

// Click waits for selector and clicks it
func (s *Service) Click(ctx context.Context, sessionID, selector string) error {
	if selector == "" {
		return fmt.Errorf("%w: selector is required", interfaces.ErrInvalidRequest)
	}
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, selector); err != nil {
		return fmt.Errorf("%w: click %s: %w", interfaces.ErrPageAction, selector, err)
	}
	if err := page.Click(ctx, selector); err != nil {
		return fmt.Errorf("%w: click %s: %w", interfaces.ErrPageAction, selector, err)
	}
	return nil
}

// Select picks value in the <select> matched by selector
func (s *Service) Select(ctx context.Context, sessionID, selector, value string) error {
	if selector == "" {
		return fmt.Errorf("%w: selector is required", interfaces.ErrInvalidRequest)
	}
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return err
	}
	if err := page.Select(ctx, selector, value); err != nil {
		return fmt.Errorf("%w: select %s: %w", interfaces.ErrPageAction, selector, err)
	}
	return nil
}

// Execute evaluates script in the page and returns its JSON-decoded result
func (s *Service) Execute(ctx context.Context, sessionID, script string) (interface{}, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("%w: script is required", interfaces.ErrInvalidRequest)
	}
	page, err := s.sessions.FirstPage(sessionID)
	if err != nil {
		return nil, err
	}

	var result interface{}
	if err := page.Evaluate(ctx, script, &result); err != nil {
		return nil, fmt.Errorf("%w: execute: %w", interfaces.ErrPageAction, err)
	}
	s.logger.Debug().Str("session_id", sessionID).Int("script_length", len(script)).Msg("Script executed")
	return result, nil
}

// ListForms parses the forms of an HTML document. Actions resolve against pageURL.
func ListForms(html, pageURL string) ([]models.PageForm, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	forms := []models.PageForm{}
	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		form := models.PageForm{
			ID:     f.AttrOr("id", ""),
			Action: f.AttrOr("action", ""),
			Method: strings.ToLower(f.AttrOr("method", "get")),
			Fields: []models.FormField{},
		}
		if base != nil {
			if ref, err := url.Parse(form.Action); err == nil {
				form.Action = base.ResolveReference(ref).String()
			}
		}

		f.Find("input, select, textarea, button").Each(func(_ int, c *goquery.Selection) {
			form.Fields = append(form.Fields, models.FormField{
				Name:        c.AttrOr("name", ""),
				Type:        controlType(c),
				Label:       controlLabel(doc, c),
				Placeholder: c.AttrOr("placeholder", ""),
			})
		})
		forms = append(forms, form)
	})
	return forms, nil
}

func controlType(c *goquery.Selection) string {
	switch tag := goquery.NodeName(c); tag {
	case "input":
		return strings.ToLower(c.AttrOr("type", "text"))
	case "button":
		return strings.ToLower(c.AttrOr("type", "submit"))
	case "select":
		if _, multiple := c.Attr("multiple"); multiple {
			return "select-multiple"
		}
		return "select-one"
	default:
		return tag
	}
}

// controlLabel finds a <label for=id>, then an enclosing <label>
func controlLabel(doc *goquery.Document, c *goquery.Selection) string {
	if id, ok := c.Attr("id"); ok && id != "" {
		if label := doc.Find("label[for=" + cssString(id) + "]"); label.Length() > 0 {
			return strings.TrimSpace(label.First().Text())
		}
	}
	if label := c.Closest("label"); label.Length() > 0 {
		return strings.TrimSpace(label.Text())
	}
	return ""
}

// cssString quotes s as a CSS string literal
func cssString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func (s *Service) currentURL(ctx context.Context, page interfaces.Page) string {
	u, err := page.URL(ctx)
	if err != nil {
		return page.LastURL()
	}
	return u
}
