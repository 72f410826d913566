package models

import "time"

// EventKind is the wire name of a notification event
type EventKind string

const (
	EventProgress            EventKind = "progress"
	EventError               EventKind = "error"
	EventNoResults           EventKind = "no-results"
	EventResults             EventKind = "results"
	EventRequestHumanInput   EventKind = "requestHumanInput"
	EventHumanInputSubmitted EventKind = "humanInputSubmitted"

	// EventSubscribed acknowledges a room subscription. It is sent to one subscriber only.
	EventSubscribed EventKind = "subscribed"
)

// NotificationEvent is published to every subscriber of a session room
type NotificationEvent struct {
	Kind      EventKind  `json:"-"`
	SessionID string     `json:"sessionId"`
	Platform  string     `json:"platform,omitempty"`
	Step      string     `json:"step,omitempty"`
	URL       string     `json:"url,omitempty"`
	Message   string     `json:"message,omitempty"`
	Match     *Candidate `json:"match,omitempty"`
	Value     string     `json:"value,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Terminal reports whether the event ends a vendor task
func (e NotificationEvent) Terminal() bool {
	switch e.Kind {
	case EventResults, EventNoResults, EventError:
		return true
	}
	return false
}
