package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/models"
)

func TestToCDPCookieParams(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cookies := []models.Cookie{
		{Name: "sid", Value: "a", Domain: ".example.com", Path: "/", Expires: -1, HTTPOnly: true, Secure: true, SameSite: "lax"},
		{Name: "pref", Value: "b", Domain: "example.com", Expires: float64(now.Add(time.Hour).Unix()), SameSite: "Strict"},
		{Name: "stale", Value: "c", Domain: "example.com", Expires: float64(now.Add(-time.Hour).Unix())},
	}

	params := toCDPCookieParams(cookies, now)
	require.Len(t, params, 2)

	assert.Equal(t, "sid", params[0].Name)
	assert.Nil(t, params[0].Expires)
	assert.True(t, params[0].HTTPOnly)
	assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)

	assert.Equal(t, "pref", params[1].Name)
	assert.Equal(t, "/", params[1].Path)
	require.NotNil(t, params[1].Expires)
	assert.Equal(t, now.Add(time.Hour).Unix(), params[1].Expires.Time().Unix())
	assert.Equal(t, network.CookieSameSiteStrict, params[1].SameSite)
}

func TestFromCDPCookiesMarksSessionCookies(t *testing.T) {
	out := fromCDPCookies([]*network.Cookie{
		{Name: "sid", Value: "a", Domain: "example.com", Path: "/", Expires: 0, Session: true, SameSite: network.CookieSameSiteNone},
		{Name: "pref", Value: "b", Domain: "example.com", Path: "/", Expires: 1700003600},
	})

	require.Len(t, out, 2)
	assert.True(t, out[0].Session())
	assert.Equal(t, "None", out[0].SameSite)
	assert.False(t, out[1].Session())
	assert.Equal(t, float64(1700003600), out[1].Expires)
}

func TestToRodCookieParams(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	params := toRodCookieParams([]models.Cookie{
		{Name: "sid", Value: "a", Domain: "example.com", Expires: -1, SameSite: "none"},
		{Name: "stale", Value: "c", Domain: "example.com", Expires: 10},
	}, now)

	require.Len(t, params, 1)
	assert.Equal(t, "sid", params[0].Name)
	assert.Equal(t, "/", params[0].Path)
	assert.Equal(t, "None", string(params[0].SameSite))
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", acceptLanguage("en-US"))
	assert.Equal(t, "fr", acceptLanguage("fr"))
	assert.Equal(t, "", acceptLanguage(""))
}

func TestNewEngineSelectsImplementation(t *testing.T) {
	logger := common.GetLogger()

	engine, err := NewEngine(&common.BrowserConfig{Engine: "chromedp"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ChromeDPEngine{}, engine)
	assert.False(t, engine.Connected())

	engine, err = NewEngine(&common.BrowserConfig{Engine: "rod"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &RodEngine{}, engine)

	_, err = NewEngine(&common.BrowserConfig{Engine: "firefox"}, logger)
	assert.Error(t, err)
}

func TestNewEngineConfigDefaults(t *testing.T) {
	config := NewEngineConfig(&common.BrowserConfig{NavigationTimeout: "5s"})
	assert.Equal(t, 30*time.Second, config.StartupTimeout)
	assert.Equal(t, 5*time.Second, config.NavigationTimeout)
}
