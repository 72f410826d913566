package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/metrics"
	"github.com/ternarybob/rateprobe/internal/models"
	"golang.org/x/time/rate"
)

const defaultTaskTimeout = 10 * time.Minute

// startStep opens every task's event stream
const startStep = "Starting search."

// Config tunes task execution
type Config struct {
	TaskTimeout      time.Duration // Wall-clock limit per vendor task
	ProgressInterval time.Duration // Minimum gap between progress events of one task, 0 = unthrottled
}

// NewConfig reads the search and events sections
func NewConfig(cfg *common.Config) Config {
	return Config{
		TaskTimeout:      common.ParseDurationOr(cfg.Search.TaskTimeout, defaultTaskTimeout),
		ProgressInterval: common.ParseDurationOr(cfg.Events.ProgressInterval, 0),
	}
}

// Service fans a search out to one task per vendor
type Service struct {
	sessions interfaces.SessionManager
	events   interfaces.EventChannel
	cookies  interfaces.CookieStore
	vendors  interfaces.VendorRegistry
	resolver interfaces.MatchResolver
	tracker  *Tracker
	validate *validator.Validate
	config   Config
	metrics  *metrics.Metrics
	logger   arbor.ILogger
}

// NewService creates the orchestrator and registers a session close hook
// that drops the session's task states and event room.
func NewService(
	sessions interfaces.SessionManager,
	events interfaces.EventChannel,
	cookies interfaces.CookieStore,
	vendors interfaces.VendorRegistry,
	resolver interfaces.MatchResolver,
	config Config,
	m *metrics.Metrics,
	logger arbor.ILogger,
) *Service {
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaultTaskTimeout
	}

	s := &Service{
		sessions: sessions,
		events:   events,
		cookies:  cookies,
		vendors:  vendors,
		resolver: resolver,
		tracker:  NewTracker(),
		validate: newValidator(),
		config:   config,
		metrics:  m,
		logger:   logger,
	}

	sessions.OnClose(func(id string) {
		s.tracker.Drop(id)
		events.DropRoom(id)
	})
	return s
}

// Search validates the request, opens a session and starts the vendor tasks.
// It returns as soon as the tasks are dispatched.
func (s *Service) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	if err := ValidateRequest(s.validate, req); err != nil {
		return nil, err
	}

	adapters, dropped := s.selectVendors(req.Platforms)
	if len(dropped) > 0 {
		s.logger.Warn().Strs("platforms", dropped).Msg("Dropping unknown platforms")
	}

	sessionID, err := s.sessions.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.IncSearches()

	ids := make([]string, len(adapters))
	for i, a := range adapters {
		ids[i] = a.ID()
	}
	s.tracker.Start(sessionID, ids)

	if len(adapters) > 0 {
		if err := s.sessions.ExpectPages(sessionID, len(adapters)); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("hotel", req.Hotel.DisplayName).
		Strs("platforms", ids).
		Msg("Search dispatched")

	for _, adapter := range adapters {
		adapter := adapter
		common.SafeGo(s.logger, "search:"+adapter.ID(), func() {
			s.runTask(sessionID, adapter, req)
		})
	}

	return &models.SearchResponse{
		SessionID: sessionID,
		Platforms: ids,
		Dropped:   dropped,
	}, nil
}

// selectVendors resolves platform ids in request order, skipping duplicates
func (s *Service) selectVendors(platforms []string) ([]interfaces.VendorAdapter, []string) {
	seen := make(map[string]bool, len(platforms))
	var adapters []interfaces.VendorAdapter
	var dropped []string
	for _, id := range platforms {
		if seen[id] {
			continue
		}
		seen[id] = true

		adapter, ok := s.vendors.Get(id)
		if !ok {
			dropped = append(dropped, id)
			continue
		}
		adapters = append(adapters, adapter)
	}
	return adapters, dropped
}

// Tasks returns the task states of a live session
func (s *Service) Tasks(sessionID string) ([]models.SearchTask, error) {
	tasks, ok := s.tracker.Tasks(sessionID)
	if !ok {
		return nil, interfaces.ErrSessionNotFound
	}
	return tasks, nil
}

// runTask is the task boundary. Nothing escapes it except events.
func (s *Service) runTask(sessionID string, adapter interfaces.VendorAdapter, req *models.SearchRequest) {
	vendor := adapter.ID()
	logger := s.logger.WithCorrelationId(sessionID)
	started := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.TaskTimeout)
	defer cancel()

	s.tracker.SetState(sessionID, vendor, models.TaskRunning)

	page, err := s.sessions.OpenPage(ctx, sessionID)
	if err != nil {
		s.events.Publish(ctx, models.NotificationEvent{
			Kind:      models.EventProgress,
			SessionID: sessionID,
			Platform:  vendor,
			Step:      startStep,
		})
		s.fail(sessionID, &models.TaskError{Vendor: vendor, Message: err.Error(), Err: err}, logger)
		s.metrics.ObserveTask(vendor, metrics.OutcomeFailed, time.Since(started))
		// Releasing may tear the session down and drop its room
		s.sessions.ReleaseExpectedPage(context.Background(), sessionID)
		return
	}

	task := &vendorTask{
		service:   s,
		sessionID: sessionID,
		vendor:    vendor,
		request:   req,
		page:      page,
		logger:    logger,
	}
	if s.config.ProgressInterval > 0 {
		task.limiter = rate.NewLimiter(rate.Every(s.config.ProgressInterval), 1)
	}

	logger.Info().Str("vendor", vendor).Str("page_id", page.ID()).Msg("Vendor task started")

	err = s.invoke(ctx, adapter, task, logger)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("task timed out after %s: %w", s.config.TaskTimeout, err)
	}
	outcome := s.settle(ctx, task, err, logger)

	if err := s.sessions.ClosePage(context.Background(), sessionID, page); err != nil {
		logger.Warn().Err(err).Str("vendor", vendor).Msg("Failed to close vendor page")
	}

	s.metrics.ObserveTask(vendor, outcome, time.Since(started))
	logger.Info().
		Str("vendor", vendor).
		Str("outcome", outcome).
		Dur("duration", time.Since(started)).
		Msg("Vendor task finished")
}

// invoke runs the adapter and turns a panic into an error
func (s *Service) invoke(ctx context.Context, adapter interfaces.VendorAdapter, task *vendorTask, logger arbor.ILogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			common.LogPanic(logger, "vendor:"+task.vendor, r)
			err = fmt.Errorf("vendor task panicked: %v", r)
		}
	}()
	return adapter.Search(ctx, task)
}

// settle reports the task's terminal outcome and returns its metrics label
func (s *Service) settle(ctx context.Context, task *vendorTask, err error, logger arbor.ILogger) string {
	state, match := task.reported()

	switch {
	case err == nil && state == "":
		task.NoResults(ctx)
		state = models.TaskNoResults
	case errors.Is(err, interfaces.ErrVendorNoResults):
		task.NoResults(ctx)
		state, match = task.reported()
	case err != nil && state != "":
		logger.Warn().
			Err(err).
			Str("vendor", task.vendor).
			Str("outcome", string(state)).
			Msg("Vendor failed after reporting an outcome")
	case err != nil:
		task.announce(ctx)
		s.fail(task.sessionID, &models.TaskError{
			Vendor:  task.vendor,
			Message: err.Error(),
			URL:     task.page.LastURL(),
			Err:     err,
		}, logger)
		return metrics.OutcomeFailed
	}

	s.tracker.Finish(task.sessionID, task.vendor, state, match, "", task.page.LastURL())
	if state == models.TaskSucceeded {
		return metrics.OutcomeSucceeded
	}
	return metrics.OutcomeNoResults
}

// fail publishes an error event and marks the task failed
func (s *Service) fail(sessionID string, taskErr *models.TaskError, logger arbor.ILogger) {
	logger.Warn().
		Err(taskErr.Err).
		Str("vendor", taskErr.Vendor).
		Str("url", taskErr.URL).
		Msg("Vendor task failed")

	s.tracker.Finish(sessionID, taskErr.Vendor, models.TaskFailed, nil, taskErr.Message, taskErr.URL)
	s.events.Publish(context.Background(), models.NotificationEvent{
		Kind:      models.EventError,
		SessionID: sessionID,
		Platform:  taskErr.Vendor,
		Message:   taskErr.Message,
		URL:       taskErr.URL,
	})
}
