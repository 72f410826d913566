package interfaces

import "errors"

// Session manager errors. These are the only errors expected to reach a direct caller.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrEngineUnavailable = errors.New("browser engine unavailable")
	ErrNoOpenPage        = errors.New("no open page in session")
	ErrPageClosed        = errors.New("page already closed")
)

// ErrPageAction wraps a failed interaction with an open page, e.g. a missing element
var ErrPageAction = errors.New("page action failed")

// Vendor task outcomes and failures. They are reported as events and never escape the task boundary.
var (
	ErrVendorLoginRequired = errors.New("vendor login required")
	ErrVendorNoResults     = errors.New("vendor returned no results")
	ErrNavigation          = errors.New("navigation failed")
	ErrMatchService        = errors.New("match service failure")
)

// Event channel errors
var (
	ErrHumanInputTimeout = errors.New("timed out waiting for human input")
	ErrHumanInputPending = errors.New("human input already requested for session")
)

// Request errors
var (
	ErrInvalidRequest = errors.New("invalid search request")
	ErrUnknownVendor  = errors.New("unknown vendor")
)
