package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
	"github.com/ternarybob/rateprobe/internal/services/browser/browsertest"
	"github.com/ternarybob/rateprobe/internal/services/sessions"
	"github.com/ternarybob/rateprobe/internal/services/transform"
)

func newTestService(t *testing.T) (*Service, *sessions.Manager, *browsertest.Engine) {
	t.Helper()
	logger := arbor.NewLogger()
	engine := browsertest.NewEngine()
	manager := sessions.NewManager(engine, nil, interfaces.ContextOptions{}, nil, logger)
	return NewService(manager, transform.NewService(logger), logger), manager, engine
}

func TestNavigateOpensPage(t *testing.T) {
	s, manager, engine := newTestService(t)
	engine.Routes["https://vendor.test/"] = `<h1>Welcome</h1><a href="/deals">Deals</a>`

	id, err := manager.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = s.URL(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNoOpenPage)

	got, err := s.Navigate(context.Background(), id, "https://vendor.test/")
	require.NoError(t, err)
	assert.Equal(t, "https://vendor.test/", got)

	current, err := s.URL(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://vendor.test/", current)

	content, err := s.Content(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://vendor.test/", content.URL)
	assert.Contains(t, content.Markdown, "# Welcome")
	assert.Equal(t, []string{"https://vendor.test/deals"}, content.Links)

	// A second navigation reuses the page
	_, err = s.Navigate(context.Background(), id, "https://vendor.test/deals")
	require.NoError(t, err)
	require.Len(t, engine.Contexts()[0].Pages(), 1)
}

func TestNavigateRejectsBadURL(t *testing.T) {
	s, manager, _ := newTestService(t)
	id, err := manager.CreateSession(context.Background())
	require.NoError(t, err)

	for _, target := range []string{"", "vendor.test", "ftp://vendor.test/", "/relative"} {
		_, err := s.Navigate(context.Background(), id, target)
		assert.ErrorIs(t, err, interfaces.ErrInvalidRequest, target)
	}
}

func TestUnknownSession(t *testing.T) {
	s, _, _ := newTestService(t)

	_, err := s.Navigate(context.Background(), "missing", "https://vendor.test/")
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)

	_, err = s.Content(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}

func TestContentWithoutPage(t *testing.T) {
	s, manager, _ := newTestService(t)
	id, err := manager.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = s.Content(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNoOpenPage)
}

func TestListForms(t *testing.T) {
	html := `<form action="search" method="GET">
  <label>Destination <input name="q" placeholder="City or hotel"></label>
  <textarea name="notes"></textarea>
  <select name="rooms" multiple></select>
  <button>Go</button>
</form>
<form id="newsletter"><input id="mail" name="email" type="email"><label for="mail">Email</label></form>`

	forms, err := ListForms(html, "https://vendor.test/hotels/")
	require.NoError(t, err)
	require.Len(t, forms, 2)

	first := forms[0]
	assert.Equal(t, "", first.ID)
	assert.Equal(t, "https://vendor.test/hotels/search", first.Action)
	assert.Equal(t, "get", first.Method)
	require.Len(t, first.Fields, 4)
	assert.Equal(t, models.FormField{Name: "q", Type: "text", Label: "Destination", Placeholder: "City or hotel"}, first.Fields[0])
	assert.Equal(t, "textarea", first.Fields[1].Type)
	assert.Equal(t, "select-multiple", first.Fields[2].Type)
	assert.Equal(t, "submit", first.Fields[3].Type)

	second := forms[1]
	assert.Equal(t, "newsletter", second.ID)
	assert.Equal(t, "https://vendor.test/hotels/", second.Action)
	assert.Equal(t, "Email", second.Fields[0].Label)
}

func TestFormActionsWithoutPage(t *testing.T) {
	s, manager, _ := newTestService(t)
	id, err := manager.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = s.Forms(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNoOpenPage)
	err = s.Click(context.Background(), id, "#go")
	assert.ErrorIs(t, err, interfaces.ErrNoOpenPage)
	_, err = s.Execute(context.Background(), "missing", "1 + 1")
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}
