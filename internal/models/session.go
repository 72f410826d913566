package models

import "time"

// SessionInfo is the administrative view of a live session
type SessionInfo struct {
	ID        string    `json:"id"`
	Pages     []string  `json:"pages"`
	CreatedAt time.Time `json:"createdAt"`
}
