package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/metrics"
	"github.com/ternarybob/rateprobe/internal/models"
)

type waiter struct {
	value   chan string
	dropped chan struct{}
}

// Service is the in-process event channel. Subscribers join rooms keyed by
// session id; there is no backlog, so only current members receive an event.
type Service struct {
	logger            arbor.ILogger
	metrics           *metrics.Metrics
	humanInputTimeout time.Duration

	mu      sync.RWMutex
	rooms   map[string]map[string]interfaces.Subscriber
	members map[string]map[string]struct{} // subscriber id -> session ids
	waiters map[string]*waiter
}

// NewService creates an event channel. A zero humanInputTimeout waits on ctx only.
func NewService(humanInputTimeout time.Duration, m *metrics.Metrics, logger arbor.ILogger) *Service {
	return &Service{
		logger:            logger,
		metrics:           m,
		humanInputTimeout: humanInputTimeout,
		rooms:             make(map[string]map[string]interfaces.Subscriber),
		members:           make(map[string]map[string]struct{}),
		waiters:           make(map[string]*waiter),
	}
}

// Subscribe adds sub to the session room and acknowledges to sub only
func (s *Service) Subscribe(sub interfaces.Subscriber, sessionID string) error {
	if sub == nil {
		return fmt.Errorf("subscriber cannot be nil")
	}
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	s.mu.Lock()
	room, ok := s.rooms[sessionID]
	if !ok {
		room = make(map[string]interfaces.Subscriber)
		s.rooms[sessionID] = room
	}
	room[sub.ID()] = sub

	joined, ok := s.members[sub.ID()]
	if !ok {
		joined = make(map[string]struct{})
		s.members[sub.ID()] = joined
	}
	joined[sessionID] = struct{}{}
	size := len(room)
	s.mu.Unlock()

	s.logger.Debug().
		Str("session_id", sessionID).
		Str("subscriber_id", sub.ID()).
		Int("room_size", size).
		Msg("Subscriber joined session room")

	return sub.Send(models.EventSubscribed, map[string]string{"sessionId": sessionID})
}

// Unsubscribe removes sub from every room it joined
func (s *Service) Unsubscribe(sub interfaces.Subscriber) {
	if sub == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for sessionID := range s.members[sub.ID()] {
		if room, ok := s.rooms[sessionID]; ok {
			delete(room, sub.ID())
			if len(room) == 0 {
				delete(s.rooms, sessionID)
			}
		}
	}
	delete(s.members, sub.ID())
}

// Publish delivers the event to every current member of its session room
func (s *Service) Publish(ctx context.Context, event models.NotificationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.RLock()
	room := s.rooms[event.SessionID]
	subs := make([]interfaces.Subscriber, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	s.logger.Debug().
		Str("event_type", string(event.Kind)).
		Str("session_id", event.SessionID).
		Str("platform", event.Platform).
		Int("subscriber_count", len(subs)).
		Msg("Event published")

	for _, sub := range subs {
		if err := sub.Send(event.Kind, event); err != nil {
			s.logger.Warn().
				Err(err).
				Str("event_type", string(event.Kind)).
				Str("subscriber_id", sub.ID()).
				Msg("Failed to deliver event to subscriber")
		}
	}
}

// AwaitHumanInput suspends until a value is submitted for the session.
// Only one waiter may be outstanding per session.
func (s *Service) AwaitHumanInput(ctx context.Context, sessionID string) (string, error) {
	w := &waiter{
		value:   make(chan string, 1),
		dropped: make(chan struct{}),
	}

	s.mu.Lock()
	if _, busy := s.waiters[sessionID]; busy {
		s.mu.Unlock()
		return "", interfaces.ErrHumanInputPending
	}
	s.waiters[sessionID] = w
	s.mu.Unlock()

	defer s.clearWaiter(sessionID, w)

	var timeout <-chan time.Time
	if s.humanInputTimeout > 0 {
		timer := time.NewTimer(s.humanInputTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var outcome string
	var err error
	select {
	case value := <-w.value:
		s.metrics.ObserveHumanInput("submitted")
		return value, nil
	case <-timeout:
		outcome, err = "timeout", interfaces.ErrHumanInputTimeout
	case <-w.dropped:
		outcome, err = "dropped", interfaces.ErrSessionNotFound
	case <-ctx.Done():
		outcome, err = "cancelled", ctx.Err()
	}

	// A submission may have resolved the waiter as the other case fired
	if value, ok := s.takeLate(sessionID, w); ok {
		s.metrics.ObserveHumanInput("submitted")
		return value, nil
	}

	s.metrics.ObserveHumanInput(outcome)
	if outcome == "timeout" {
		s.logger.Warn().Str("session_id", sessionID).Dur("timeout", s.humanInputTimeout).Msg("Human input timed out")
	}
	return "", err
}

// takeLate unregisters w and returns a value submitted before that happened.
// SubmitHumanInput sends under the lock, so nothing can arrive afterwards.
func (s *Service) takeLate(sessionID string, w *waiter) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.waiters[sessionID]; ok && current == w {
		delete(s.waiters, sessionID)
	}
	select {
	case value := <-w.value:
		return value, true
	default:
		return "", false
	}
}

func (s *Service) clearWaiter(sessionID string, w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.waiters[sessionID]; ok && current == w {
		delete(s.waiters, sessionID)
	}
}

// SubmitHumanInput resolves the pending waiter, if any, and always broadcasts
// the submission to the room. Returns whether a waiter was resolved.
func (s *Service) SubmitHumanInput(ctx context.Context, sessionID, value string) bool {
	s.mu.Lock()
	w, ok := s.waiters[sessionID]
	if ok {
		delete(s.waiters, sessionID)
		w.value <- value
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", sessionID).
		Bool("resolved", ok).
		Msg("Human input submitted")

	s.Publish(ctx, models.NotificationEvent{
		Kind:      models.EventHumanInputSubmitted,
		SessionID: sessionID,
		Value:     value,
	})
	return ok
}

// DropRoom discards the room of a closed session and fails its pending waiter
func (s *Service) DropRoom(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.rooms[sessionID] {
		if joined, ok := s.members[id]; ok {
			delete(joined, sessionID)
			if len(joined) == 0 {
				delete(s.members, id)
			}
		}
	}
	delete(s.rooms, sessionID)

	if w, ok := s.waiters[sessionID]; ok {
		delete(s.waiters, sessionID)
		close(w.dropped)
	}
}

func (s *Service) RoomSize(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[sessionID])
}

// HasWaiter reports whether a human input request is outstanding for the session
func (s *Service) HasWaiter(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.waiters[sessionID]
	return ok
}
