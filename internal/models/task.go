package models

import (
	"fmt"
	"time"
)

// TaskState is the lifecycle state of one vendor task
type TaskState string

const (
	TaskPending            TaskState = "pending"
	TaskRunning            TaskState = "running"
	TaskAwaitingHumanInput TaskState = "awaiting-human-input"
	TaskSucceeded          TaskState = "succeeded"
	TaskNoResults          TaskState = "no-results"
	TaskFailed             TaskState = "failed"
)

// Terminal reports whether no further transitions are possible
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskNoResults || s == TaskFailed
}

// SearchTask is the (session, vendor) unit of work
type SearchTask struct {
	SessionID  string     `json:"sessionId"`
	Vendor     string     `json:"platform"`
	State      TaskState  `json:"state"`
	Match      *Candidate `json:"match,omitempty"`
	Error      string     `json:"error,omitempty"`
	LastURL    string     `json:"url,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// TaskError is the reportable failure of a vendor task.
// It carries only plain data so it can outlive the page it came from.
type TaskError struct {
	Vendor  string
	Message string
	URL     string
	Err     error
}

func (e *TaskError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Vendor, e.Message, e.URL)
	}
	return fmt.Sprintf("%s: %s", e.Vendor, e.Message)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
