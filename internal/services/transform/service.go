package transform

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// Service turns page HTML into markdown and link lists
type Service struct {
	logger arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown converts html to markdown. Relative links resolve against baseURL.
// When conversion fails or yields nothing, the page text is returned instead.
func (s *Service) HTMLToMarkdown(html string, baseURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	converter := md.NewConverter(md.DomainFromURL(baseURL), true, &md.Options{
		GetAbsoluteURL: absoluteURL(baseURL),
	})
	converted, err := converter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", baseURL).Msg("Markdown conversion failed, falling back to page text")
		return plainText(html)
	}

	if strings.TrimSpace(converted) == "" {
		s.logger.Debug().Int("html_length", len(html)).Msg("Markdown conversion was empty, falling back to page text")
		return plainText(html)
	}

	return converted, nil
}

// ExtractLinks returns the absolute http(s) links of a page in document order, without duplicates
func (s *Service) ExtractLinks(html string, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(baseURL)

	seen := make(map[string]struct{})
	links := []string{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		ref.Fragment = ""
		link := ref.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

func plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// absoluteURL resolves links against the full page URL. The converter's
// default only knows the host and assumes http.
func absoluteURL(baseURL string) func(*goquery.Selection, string, string) string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		base = nil
	}
	return func(_ *goquery.Selection, rawURL string, _ string) string {
		if base == nil {
			return rawURL
		}
		ref, err := url.Parse(strings.TrimSpace(rawURL))
		if err != nil || ref.Scheme == "data" {
			return rawURL
		}
		return base.ResolveReference(ref).String()
	}
}
