package vendors

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
	"github.com/ternarybob/rateprobe/internal/services/match"
)

// fakeTask records what an adapter reports
type fakeTask struct {
	mu sync.Mutex

	request  *models.SearchRequest
	page     interfaces.Page
	resolver interfaces.MatchResolver

	humanInput    string
	humanInputErr error
	saveErr       error

	steps      []string
	noResults  int
	match      *models.Candidate
	inputCalls int
	saves      int
}

func newFakeTask(page interfaces.Page, req *models.SearchRequest) *fakeTask {
	return &fakeTask{
		request:  req,
		page:     page,
		resolver: match.NewResolver(nil, "", 0, nil, arbor.NewLogger()),
	}
}

func (t *fakeTask) SessionID() string { return "session-1" }
func (t *fakeTask) Vendor() string { return "test" }
func (t *fakeTask) Request() *models.SearchRequest { return t.request }
func (t *fakeTask) Page() interfaces.Page { return t.page }
func (t *fakeTask) Resolver() interfaces.MatchResolver { return t.resolver }

func (t *fakeTask) Progress(ctx context.Context, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, step)
}

func (t *fakeTask) NoResults(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.noResults++
}

func (t *fakeTask) Results(ctx context.Context, m *models.Candidate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.match = m
}

func (t *fakeTask) RequestHumanInput(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputCalls++
	return t.humanInput, t.humanInputErr
}

func (t *fakeTask) SaveCookies(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saves++
	return t.saveErr
}

func testRequest(name, address string) *models.SearchRequest {
	return &models.SearchRequest{
		Hotel:      models.HotelDescriptor{DisplayName: name, FormattedAddress: address},
		DateRanges: []models.DateRange{{From: "2026-03-01", To: "2026-03-04"}},
		Adults:     2,
		Platforms:  []string{"test"},
	}
}
