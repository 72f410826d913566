package vendors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/services/browser/browsertest"
)

const (
	startURL    = "https://vendor.test/"
	loggedIn    = `<html><body><form><input id="q"><button id="search"></button></form></body></html>`
	loginForm   = `<html><body><form id="login"><input id="user"><input id="pass"><button id="go"></button></form></body></html>`
	otpForm     = `<html><body><form id="otp"><input id="code"><button id="verify"></button></form></body></html>`
	emptyResult = `<html><body><p class="empty">Nothing found</p></body></html>`
)

func hotelCards(names ...string) string {
	html := "<html><body>"
	for i, n := range names {
		html += `<div class="hotel"><a href="/h/` + string(rune('a'+i)) + `"><span class="name">` + n + `</span></a></div>`
	}
	return html + "</body></html>"
}

func templateDefinition() *Definition {
	return &Definition{
		ID:       "tmpl",
		Name:     "Template Vendor",
		StartURL: startURL,
		Search:   SearchStep{URL: "https://vendor.test/search?q={query}", NoResults: ".empty"},
		Results:  ResultsStep{Card: ".hotel", Name: ".name", Link: "a", LinkAttr: "href"},
	}
}

func formDefinition() *Definition {
	return &Definition{
		ID:       "form",
		StartURL: startURL,
		Login: &LoginStep{
			Detect: "#login", Username: "#user", Password: "#pass", Submit: "#go",
			UsernameEnv: "FORM_USER", PasswordEnv: "FORM_PASS",
		},
		Search:  SearchStep{Input: "#q", Submit: "#search"},
		Results: ResultsStep{Card: ".hotel", Name: ".name", Link: "a", LinkAttr: "href"},
	}
}

func newPage(t *testing.T, engine *browsertest.Engine) *browsertest.Page {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, engine.Launch(ctx))
	bc, err := engine.NewContext(ctx, interfaces.ContextOptions{})
	require.NoError(t, err)
	p, err := bc.NewPage(ctx)
	require.NoError(t, err)
	return p.(*browsertest.Page)
}

func newAdapter(def *Definition, env map[string]string) *ScriptedAdapter {
	a := NewScriptedAdapter(def, arbor.NewLogger())
	a.getenv = func(k string) string { return env[k] }
	return a
}

func TestScriptedExactMatchOnFirstQuery(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loggedIn
	engine.Routes["https://vendor.test/search?q=Grand+Hotel+Sydney"] = hotelCards("Grand Hotel Sydney", "Grand Hotel Melbourne")

	task := newFakeTask(newPage(t, engine), testRequest("Grand Hotel Sydney", "1 George St"))
	require.NoError(t, newAdapter(templateDefinition(), nil).Search(context.Background(), task))

	require.NotNil(t, task.match)
	assert.Equal(t, "Grand Hotel Sydney", task.match.Name)
	assert.Equal(t, "https://vendor.test/h/a", task.match.Link)
	assert.Equal(t, []string{
		"Navigating to Template Vendor.",
		"Trying search for 'Grand Hotel Sydney'.",
		"Matching 2 results.",
	}, task.steps)
	assert.Zero(t, task.noResults)
}

func TestScriptedRelaxesQuery(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loggedIn
	engine.Routes["https://vendor.test/search?q=Grand+Hotel+Sydney"] = emptyResult
	engine.Routes["https://vendor.test/search?q=Grand+Hotel"] = hotelCards("Grand Hotel Sydney")

	task := newFakeTask(newPage(t, engine), testRequest("Grand Hotel Sydney", ""))
	require.NoError(t, newAdapter(templateDefinition(), nil).Search(context.Background(), task))

	require.NotNil(t, task.match)
	assert.Contains(t, task.steps, "Trying search for 'Grand Hotel'.")
	assert.NotContains(t, task.steps, "Trying search for 'Grand'.")
}

func TestScriptedNoResultsAfterRelaxation(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loggedIn

	task := newFakeTask(newPage(t, engine), testRequest("Grand Hotel Sydney", ""))
	require.NoError(t, newAdapter(templateDefinition(), nil).Search(context.Background(), task))

	assert.Nil(t, task.match)
	assert.Equal(t, 1, task.noResults)
	assert.Len(t, task.steps, 4)
}

func TestScriptedResultsWithoutMatch(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loggedIn
	engine.Routes["https://vendor.test/search?q=Grand+Hotel+Sydney"] = hotelCards("Some Other Place")

	task := newFakeTask(newPage(t, engine), testRequest("Grand Hotel Sydney", ""))
	require.NoError(t, newAdapter(templateDefinition(), nil).Search(context.Background(), task))

	assert.Nil(t, task.match)
	assert.Equal(t, 1, task.noResults)
}

func TestScriptedNavigationFailure(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.NavigateErrs[startURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	task := newFakeTask(newPage(t, engine), testRequest("Inn", ""))
	err := newAdapter(templateDefinition(), nil).Search(context.Background(), task)
	assert.ErrorIs(t, err, interfaces.ErrNavigation)
}

func TestScriptedLoginFlow(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loginForm
	engine.Routes["https://vendor.test/results"] = hotelCards("Harbour Inn")
	engine.OnClick = func(p *browsertest.Page, selector string) string {
		switch selector {
		case "#go":
			engine.Routes[startURL] = loggedIn
			return startURL
		case "#search":
			return "https://vendor.test/results"
		}
		return ""
	}

	page := newPage(t, engine)
	task := newFakeTask(page, testRequest("Harbour Inn", ""))
	adapter := newAdapter(formDefinition(), map[string]string{"FORM_USER": "agent", "FORM_PASS": "secret"})
	require.NoError(t, adapter.Search(context.Background(), task))

	assert.Equal(t, "agent", page.Value("#user"))
	assert.Equal(t, "secret", page.Value("#pass"))
	assert.Equal(t, "Harbour Inn", page.Value("#q"))
	assert.Equal(t, 1, task.saves)
	assert.Contains(t, task.steps, "Login successful.")
	require.NotNil(t, task.match)
	assert.Equal(t, "Harbour Inn", task.match.Name)
}

func TestScriptedLoginWithOTP(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loginForm
	engine.Routes["https://vendor.test/otp"] = otpForm
	engine.Routes["https://vendor.test/results"] = hotelCards("Harbour Inn")
	engine.OnClick = func(p *browsertest.Page, selector string) string {
		switch selector {
		case "#go":
			return "https://vendor.test/otp"
		case "#verify":
			engine.Routes[startURL] = loggedIn
			return startURL
		case "#search":
			return "https://vendor.test/results"
		}
		return ""
	}

	def := formDefinition()
	def.OTP = &OTPStep{Detect: "#otp", Input: "#code", Submit: "#verify"}

	page := newPage(t, engine)
	task := newFakeTask(page, testRequest("Harbour Inn", ""))
	task.humanInput = "123456"
	task.saveErr = errors.New("disk full")

	adapter := newAdapter(def, map[string]string{"FORM_USER": "agent", "FORM_PASS": "secret"})
	require.NoError(t, adapter.Search(context.Background(), task))

	assert.Equal(t, 1, task.inputCalls)
	assert.Equal(t, "123456", page.Value("#code"))
	assert.Contains(t, task.steps, "Verification code submitted.")
	require.NotNil(t, task.match)
}

func TestScriptedOTPFailureAbortsTask(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loginForm
	engine.Routes["https://vendor.test/otp"] = otpForm
	engine.OnClick = func(p *browsertest.Page, selector string) string {
		if selector == "#go" {
			return "https://vendor.test/otp"
		}
		return ""
	}

	def := formDefinition()
	def.OTP = &OTPStep{Detect: "#otp", Input: "#code", Submit: "#verify"}

	task := newFakeTask(newPage(t, engine), testRequest("Harbour Inn", ""))
	task.humanInputErr = interfaces.ErrHumanInputTimeout

	adapter := newAdapter(def, map[string]string{"FORM_USER": "agent", "FORM_PASS": "secret"})
	err := adapter.Search(context.Background(), task)
	assert.ErrorIs(t, err, interfaces.ErrHumanInputTimeout)
}

func TestScriptedLoginWithoutCredentials(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loginForm

	task := newFakeTask(newPage(t, engine), testRequest("Harbour Inn", ""))
	err := newAdapter(formDefinition(), nil).Search(context.Background(), task)
	assert.ErrorIs(t, err, interfaces.ErrVendorLoginRequired)
	assert.Zero(t, task.saves)
}

func TestScriptedLoginRejected(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loginForm

	task := newFakeTask(newPage(t, engine), testRequest("Harbour Inn", ""))
	adapter := newAdapter(formDefinition(), map[string]string{"FORM_USER": "agent", "FORM_PASS": "wrong"})
	err := adapter.Search(context.Background(), task)
	assert.ErrorIs(t, err, interfaces.ErrVendorLoginRequired)
	assert.ErrorContains(t, err, "credentials were rejected")
}

func TestScriptedHonoursCancellation(t *testing.T) {
	engine := browsertest.NewEngine()
	engine.Routes[startURL] = loggedIn

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := newFakeTask(newPage(t, engine), testRequest("Inn", ""))
	err := newAdapter(templateDefinition(), nil).Search(ctx, task)
	assert.ErrorIs(t, err, context.Canceled)
}
