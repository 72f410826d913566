package search

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
	"golang.org/x/time/rate"
)

// vendorTask is the handle one adapter run works through
type vendorTask struct {
	service   *Service
	sessionID string
	vendor    string
	request   *models.SearchRequest
	page      interfaces.Page
	limiter   *rate.Limiter
	logger    arbor.ILogger

	mu        sync.Mutex
	outcome   models.TaskState
	match     *models.Candidate
	announced bool
}

func (t *vendorTask) SessionID() string { return t.sessionID }
func (t *vendorTask) Vendor() string { return t.vendor }
func (t *vendorTask) Request() *models.SearchRequest { return t.request }
func (t *vendorTask) Page() interfaces.Page { return t.page }
func (t *vendorTask) Resolver() interfaces.MatchResolver { return t.service.resolver }

func (t *vendorTask) publish(ctx context.Context, event models.NotificationEvent) {
	if event.Kind == models.EventProgress {
		t.mu.Lock()
		t.announced = true
		t.mu.Unlock()
	} else {
		t.announce(ctx)
	}

	event.SessionID = t.sessionID
	event.Platform = t.vendor
	if event.URL == "" {
		event.URL = t.page.LastURL()
	}
	t.service.tracker.SetURL(t.sessionID, t.vendor, event.URL)
	t.service.events.Publish(ctx, event)
}

// announce emits the start step unless the task already reported progress
func (t *vendorTask) announce(ctx context.Context) {
	t.mu.Lock()
	if t.announced {
		t.mu.Unlock()
		return
	}
	t.announced = true
	t.mu.Unlock()
	t.publish(ctx, models.NotificationEvent{Kind: models.EventProgress, Step: startStep})
}

// Progress emits a progress step, subject to the per-task throttle
func (t *vendorTask) Progress(ctx context.Context, step string) {
	if t.limiter != nil && !t.limiter.Allow() {
		t.logger.Debug().Str("step", step).Msg("Progress event throttled")
		return
	}
	t.logger.Debug().Str("step", step).Msg("Vendor progress")
	t.publish(ctx, models.NotificationEvent{Kind: models.EventProgress, Step: step})
}

// report records the first terminal outcome. Later reports are ignored.
func (t *vendorTask) report(state models.TaskState, match *models.Candidate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome != "" {
		t.logger.Warn().
			Str("outcome", string(t.outcome)).
			Str("ignored", string(state)).
			Msg("Vendor reported more than one outcome")
		return false
	}
	t.outcome = state
	t.match = match
	return true
}

func (t *vendorTask) reported() (models.TaskState, *models.Candidate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.match
}

func (t *vendorTask) NoResults(ctx context.Context) {
	if !t.report(models.TaskNoResults, nil) {
		return
	}
	t.publish(ctx, models.NotificationEvent{Kind: models.EventNoResults})
}

func (t *vendorTask) Results(ctx context.Context, match *models.Candidate) {
	if match == nil {
		t.NoResults(ctx)
		return
	}
	if !t.report(models.TaskSucceeded, match) {
		return
	}
	t.publish(ctx, models.NotificationEvent{Kind: models.EventResults, Match: match})
}

// RequestHumanInput announces the request and suspends the task until a value arrives
func (t *vendorTask) RequestHumanInput(ctx context.Context) (string, error) {
	tracker := t.service.tracker
	tracker.SetState(t.sessionID, t.vendor, models.TaskAwaitingHumanInput)
	defer tracker.SetState(t.sessionID, t.vendor, models.TaskRunning)

	t.logger.Info().Msg("Waiting for human input")
	t.publish(ctx, models.NotificationEvent{Kind: models.EventRequestHumanInput})

	value, err := t.service.events.AwaitHumanInput(ctx, t.sessionID)
	if err != nil {
		return "", err
	}
	t.logger.Info().Msg("Human input received")
	return value, nil
}

// SaveCookies stores the session's cookies under this vendor
func (t *vendorTask) SaveCookies(ctx context.Context) error {
	bc, err := t.service.sessions.GetContext(t.sessionID)
	if err != nil {
		return err
	}
	cookies, err := bc.Cookies(ctx)
	if err != nil {
		return err
	}
	return t.service.cookies.Save(ctx, t.vendor, cookies)
}
