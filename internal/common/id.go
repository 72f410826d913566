package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates an opaque, globally unique session identifier
func NewSessionID() string {
	return uuid.New().String()
}

// NewSubscriberID generates an identifier for an event channel subscriber
// Format: sub_<uuid>
func NewSubscriberID() string {
	return "sub_" + uuid.New().String()
}
