package browser

import (
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ternarybob/rateprobe/internal/models"
)

// toCDPCookieParams converts stored cookies for injection via chromedp.
// Expired cookies are skipped.
func toCDPCookieParams(cookies []models.Cookie, now time.Time) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Session() {
			expiresAt := unixSeconds(c.Expires)
			if !expiresAt.After(now) {
				continue
			}
			ts := cdp.TimeSinceEpoch(expiresAt)
			param.Expires = &ts
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			param.SameSite = network.CookieSameSiteStrict
		case "lax":
			param.SameSite = network.CookieSameSiteLax
		case "none":
			param.SameSite = network.CookieSameSiteNone
		}
		if param.Path == "" {
			param.Path = "/"
		}
		params = append(params, param)
	}
	return params
}

func fromCDPCookies(cookies []*network.Cookie) []models.Cookie {
	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return out
}

// toRodCookieParams converts stored cookies for injection via go-rod
func toRodCookieParams(cookies []models.Cookie, now time.Time) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		if !c.Session() && !unixSeconds(c.Expires).After(now) {
			continue
		}
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Session() {
			param.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if c.SameSite != "" {
			param.SameSite = proto.NetworkCookieSameSite(canonicalSameSite(c.SameSite))
		}
		if param.Path == "" {
			param.Path = "/"
		}
		params = append(params, param)
	}
	return params
}

func fromRodCookies(cookies []*proto.NetworkCookie) []models.Cookie {
	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		expires := float64(c.Expires)
		if c.Session {
			expires = -1
		}
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

func unixSeconds(v float64) time.Time {
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func canonicalSameSite(v string) string {
	switch strings.ToLower(v) {
	case "strict":
		return "Strict"
	case "lax":
		return "Lax"
	case "none":
		return "None"
	}
	return v
}
