package agent

import (
	"errors"
	"fmt"
)

// ErrUnknownCallback indicates a scheduled task named a callback outside the
// enumerated set. Registration only accepts known names, so this fires only
// on corrupted or foreign task records.
var ErrUnknownCallback = errors.New("unknown callback")

// ValidationError represents a malformed request. It is returned before any
// state mutation and is never retried.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// UpstreamError represents a completion-provider failure. The user message
// appended before the provider call stays in history so a retried turn does
// not duplicate it.
type UpstreamError struct {
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SchedulerFault represents a failed reminder registration. No task id was
// produced; the caller may retry, and the core does not deduplicate.
type SchedulerFault struct {
	Err error
}

// Error implements the error interface.
func (e *SchedulerFault) Error() string {
	return fmt.Sprintf("failed to schedule reminder: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *SchedulerFault) Unwrap() error {
	return e.Err
}
