package vendors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/rateprobe/internal/models"
)

// ExtractCandidates parses result cards out of html. Relative links resolve against pageURL.
func ExtractCandidates(html, pageURL string, step ResultsStep) ([]models.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	base, _ := url.Parse(pageURL)
	attr := step.LinkAttr
	if attr == "" {
		attr = "href"
	}

	var candidates []models.Candidate
	doc.Find(step.Card).Each(func(i int, card *goquery.Selection) {
		name := text(card, step.Name)
		if name == "" {
			return
		}

		c := models.Candidate{
			Name:    name,
			Address: text(card, step.Address),
			Price:   text(card, step.Price),
		}

		link := card
		if step.Link != "" {
			link = card.Find(step.Link).First()
		}
		if href, ok := link.Attr(attr); ok {
			c.Link = resolveLink(base, href)
		}

		candidates = append(candidates, c)
	})

	return candidates, nil
}

func text(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(card.Find(selector).First().Text()), " ")
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
