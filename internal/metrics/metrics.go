// Package metrics defines the instrumentation hooks used across components.
package metrics

import "time"

// Recorder receives operational measurements. A nop implementation keeps
// instrumentation optional in tests.
type Recorder interface {
	// RequestHandled counts one inbound request by outcome
	// (ok, validation_error, upstream_error, scheduler_fault, internal_error).
	RequestHandled(outcome string)

	// TurnDuration observes one actor turn (kind is "chat" or "reminder").
	TurnDuration(kind string, d time.Duration)

	// ReminderScheduled counts one successful task registration.
	ReminderScheduled()

	// ReminderFired counts one scheduler dispatch attempt.
	ReminderFired(success bool)

	// ActorsActive reports the current size of the actor registry.
	ActorsActive(n int)
}

type nopRecorder struct{}

// Nop returns a Recorder that discards all measurements.
func Nop() Recorder { return nopRecorder{} }

func (nopRecorder) RequestHandled(string)              {}
func (nopRecorder) TurnDuration(string, time.Duration) {}
func (nopRecorder) ReminderScheduled()                 {}
func (nopRecorder) ReminderFired(bool)                 {}
func (nopRecorder) ActorsActive(int)                   {}
