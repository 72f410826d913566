package vendors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/rateprobe/internal/models"
)

const resultsHTML = `<html><body>
<div class="hotel">
  <a href="/h/1"><span class="name">  Grand
     Hotel </span></a>
  <span class="addr">1 George St</span>
  <span class="price">$ 240</span>
</div>
<div class="hotel">
  <a href="https://other.test/h/2"><span class="name">Harbour Inn</span></a>
</div>
<div class="hotel"><span class="addr">no name here</span></div>
</body></html>`

func TestExtractCandidates(t *testing.T) {
	step := ResultsStep{Card: ".hotel", Name: ".name", Address: ".addr", Price: ".price", Link: "a", LinkAttr: "href"}

	got, err := ExtractCandidates(resultsHTML, "https://vendor.test/search?q=grand", step)
	require.NoError(t, err)

	assert.Equal(t, []models.Candidate{
		{Link: "https://vendor.test/h/1", Name: "Grand Hotel", Address: "1 George St", Price: "$ 240"},
		{Link: "https://other.test/h/2", Name: "Harbour Inn"},
	}, got)
}

func TestExtractCandidatesCardAsLink(t *testing.T) {
	html := `<a class="card" data-url="/x"><b>Inn</b></a>`
	step := ResultsStep{Card: ".card", Name: "b", LinkAttr: "data-url"}

	got, err := ExtractCandidates(html, "https://vendor.test/", step)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://vendor.test/x", got[0].Link)
}

func TestExtractCandidatesNoCards(t *testing.T) {
	got, err := ExtractCandidates("<html></html>", "https://vendor.test/", ResultsStep{Card: ".hotel", Name: ".name"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
