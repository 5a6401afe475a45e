package events

import (
	"fmt"
	"strings"
	"time"
)

// Event represents a single occurrence in the deployment lifecycle
type Event struct {
	// Time is when the event occurred (set by bus on emit)
	Time time.Time `json:"time"`

	// Type identifies what happened
	Type EventType `json:"type"`

	// Target is the target name this event relates to (empty for run and stage events)
	Target string `json:"target,omitempty"`

	// Address is the target's network endpoint
	Address string `json:"address,omitempty"`

	// Group is the target's group ID (nil if not target-related)
	Group *int `json:"group,omitempty"`

	// Attempt is the 1-based attempt number (0 if not attempt-related)
	Attempt     int `json:"attempt,omitempty"`
	MaxAttempts int `json:"max_attempts,omitempty"`

	// ExitCode is the remote job or stage exit code (nil if none was produced)
	ExitCode *int `json:"exit_code,omitempty"`

	Duration time.Duration `json:"duration,omitempty"`

	// Stage is the pre-stage name for stage events
	Stage string `json:"stage,omitempty"`

	// LogPath points at the stage or target log file
	LogPath string `json:"log_path,omitempty"`

	// Payload contains event-specific data (type varies by event)
	Payload any `json:"payload,omitempty"`

	// Error contains error message if this is a failure event
	Error string `json:"error,omitempty"`
}

// EventType is a string constant identifying the event category
type EventType string

// Run lifecycle events
const (
	// RunStarted payload: targets, concurrency, max_attempts, provider
	RunStarted EventType = "run.started"

	// RunCompleted payload: success, failed, timeout, error, total_attempts
	RunCompleted EventType = "run.completed"

	// RunAborted is emitted when a critical stage fails; no target is started
	RunAborted EventType = "run.aborted"
)

// Stage lifecycle events
const (
	StageStarted   EventType = "stage.started"
	StageCompleted EventType = "stage.completed"

	// StageFailed payload: critical (bool), tail ([]string)
	StageFailed  EventType = "stage.failed"
	StageSkipped EventType = "stage.skipped"
)

// Target lifecycle events
const (
	TargetQueued   EventType = "target.queued"
	TargetAdmitted EventType = "target.admitted"

	AttemptStarted EventType = "attempt.started"

	// AttemptFinished payload: kind (success|failure|timeout|error)
	AttemptFinished EventType = "attempt.finished"

	TargetRetrying  EventType = "target.retrying"
	TargetSucceeded EventType = "target.succeeded" // Terminal
	TargetFailed    EventType = "target.failed"    // Terminal
	TargetTimeout   EventType = "target.timeout"   // Terminal
	TargetError     EventType = "target.error"     // Terminal
)

// NewEvent creates an event with the given type and target
func NewEvent(eventType EventType, target string) Event {
	return Event{
		Type:   eventType,
		Target: target,
	}
}

// WithAddress returns a copy of the event with the target address set
func (e Event) WithAddress(address string) Event {
	e.Address = address
	return e
}

// WithGroup returns a copy of the event with the group ID set
func (e Event) WithGroup(group int) Event {
	e.Group = &group
	return e
}

// WithAttempt returns a copy of the event with the attempt counters set
func (e Event) WithAttempt(attempt, maxAttempts int) Event {
	e.Attempt = attempt
	e.MaxAttempts = maxAttempts
	return e
}

// WithExitCode returns a copy of the event with the exit code set
func (e Event) WithExitCode(code int) Event {
	e.ExitCode = &code
	return e
}

// WithDuration returns a copy of the event with the duration set
func (e Event) WithDuration(d time.Duration) Event {
	e.Duration = d
	return e
}

// WithStage returns a copy of the event with the stage name set
func (e Event) WithStage(stage string) Event {
	e.Stage = stage
	return e
}

// WithLogPath returns a copy of the event with the log path set
func (e Event) WithLogPath(path string) Event {
	e.LogPath = path
	return e
}

// WithPayload returns a copy of the event with the payload set
func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of the event with the error message set
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsFailure returns true if this is a failure event type
func (e Event) IsFailure() bool {
	switch e.Type {
	case RunAborted, StageFailed, TargetFailed, TargetTimeout, TargetError:
		return true
	}
	return false
}

// IsTerminal returns true if the event reports a target reaching a terminal state
func (e Event) IsTerminal() bool {
	switch e.Type {
	case TargetSucceeded, TargetFailed, TargetTimeout, TargetError:
		return true
	}
	return false
}

// String returns a human-readable representation of the event
func (e Event) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))

	if e.Stage != "" {
		parts = append(parts, e.Stage)
	}

	if e.Target != "" {
		parts = append(parts, e.Target)
	}

	if e.Group != nil {
		parts = append(parts, fmt.Sprintf("group=%d", *e.Group))
	}

	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d/%d", e.Attempt, e.MaxAttempts))
	}

	if e.ExitCode != nil {
		parts = append(parts, fmt.Sprintf("exit=%d", *e.ExitCode))
	}

	return strings.Join(parts, " ")
}
