package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
)

// Staler is the part of the session manager the reaper needs
type Staler interface {
	CloseStale(ctx context.Context, maxAge time.Duration) int
}

// Reaper periodically closes sessions that outlived their maximum age
type Reaper struct {
	sessions Staler
	maxAge   time.Duration
	schedule string
	logger   arbor.ILogger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewReaper creates a reaper. A zero maxAge disables reaping.
func NewReaper(sessions Staler, maxAge time.Duration, schedule string, logger arbor.ILogger) *Reaper {
	if schedule == "" {
		schedule = "* * * * *"
	}
	return &Reaper{
		sessions: sessions,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the reap job and starts the cron scheduler
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reaper already running")
	}
	if r.maxAge <= 0 {
		r.logger.Info().Msg("Session reaper disabled (no max age)")
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		defer func() {
			if rec := recover(); rec != nil {
				common.LogPanic(r.logger, "session-reaper", rec)
			}
		}()
		r.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to add reap job: %w", err)
	}

	r.cron.Start()
	r.running = true

	r.logger.Info().
		Str("schedule", r.schedule).
		Dur("max_age", r.maxAge).
		Msg("Session reaper started")
	return nil
}

// RunOnce closes every stale session now and returns how many were closed
func (r *Reaper) RunOnce(ctx context.Context) int {
	closed := r.sessions.CloseStale(ctx, r.maxAge)
	if closed > 0 {
		r.logger.Info().Int("closed", closed).Msg("Reaped stale sessions")
	}
	return closed
}

// Stop halts the scheduler and waits for a running reap to finish
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info().Msg("Session reaper stopped")
}
