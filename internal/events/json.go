package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JSONEvent is the wire format for events written with --json.
// Durations are emitted in milliseconds.
type JSONEvent struct {
	Type       string         `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	Target     string         `json:"target,omitempty"`
	Address    string         `json:"address,omitempty"`
	Group      *int           `json:"group,omitempty"`
	Attempt    int            `json:"attempt,omitempty"`
	MaxAttempt int            `json:"max_attempts,omitempty"`
	ExitCode   *int           `json:"exit_code,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	LogPath    string         `json:"log_path,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// JSONEmitter writes events as JSON lines to a writer.
// Thread-safe for concurrent Emit calls.
type JSONEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONEmitter creates a new JSON emitter that writes to w.
// Each event is written as a single JSON line (newline-delimited).
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{enc: json.NewEncoder(w)}
}

// Emit converts the internal Event to JSONEvent wire format and writes it
func (e *JSONEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.enc.Encode(ToJSONEvent(event))
}

// JSONEmitterHandler returns a Handler that emits events as JSON lines.
// Encoding failures are logged to logger and otherwise ignored.
func JSONEmitterHandler(emitter *JSONEmitter, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(e Event) {
		if err := emitter.Emit(e); err != nil {
			logger.Warn("failed to emit JSON event", zap.Error(err))
		}
	}
}

// ToJSONEvent converts an internal Event to the wire format
func ToJSONEvent(e Event) JSONEvent {
	je := JSONEvent{
		Type:       string(e.Type),
		Timestamp:  e.Time,
		Target:     e.Target,
		Address:    e.Address,
		Group:      e.Group,
		Attempt:    e.Attempt,
		MaxAttempt: e.MaxAttempts,
		ExitCode:   e.ExitCode,
		DurationMS: e.Duration.Milliseconds(),
		Stage:      e.Stage,
		LogPath:    e.LogPath,
		Error:      e.Error,
	}

	if e.Payload != nil {
		switch p := e.Payload.(type) {
		case map[string]any:
			je.Payload = p
		default:
			je.Payload = map[string]any{"value": e.Payload}
		}
	}

	return je
}
