package interfaces

import (
	"context"

	"github.com/ternarybob/rateprobe/internal/models"
)

// Subscriber is one connected event consumer (typically a WebSocket connection)
type Subscriber interface {
	ID() string
	Send(kind models.EventKind, payload interface{}) error
}

// EventChannel is the room-based pub/sub bus keyed by session id
type EventChannel interface {
	Subscribe(sub Subscriber, sessionID string) error
	Unsubscribe(sub Subscriber)
	Publish(ctx context.Context, event models.NotificationEvent)
	AwaitHumanInput(ctx context.Context, sessionID string) (string, error)
	SubmitHumanInput(ctx context.Context, sessionID, value string) bool
	// DropRoom discards the room and any pending waiter of a closed session
	DropRoom(sessionID string)
	RoomSize(sessionID string) int
}
