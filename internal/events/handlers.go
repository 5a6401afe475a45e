package events

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogHandler returns a handler that writes every event as one log record.
// Target lines are prefixed with the group ID: "[  3] Starting deployment
// on dc01 (10.3.1.5) - Attempt 1/3".
func LogHandler(logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(e Event) {
		fields := eventFields(e)

		switch e.Type {
		case RunStarted:
			logger.Info("Starting deployment run", fields...)
		case RunCompleted:
			logger.Info("Deployment run completed", fields...)
		case RunAborted:
			logger.Error(fmt.Sprintf("Deployment aborted: critical stage %s failed", e.Stage), fields...)

		case StageStarted:
			logger.Info(fmt.Sprintf("Running stage %s", e.Stage), fields...)
		case StageCompleted:
			logger.Info(fmt.Sprintf("✓ Stage %s completed in %s", e.Stage, e.Duration.Round(time.Second)), fields...)
		case StageSkipped:
			logger.Info(fmt.Sprintf("Skipping stage %s", e.Stage), fields...)
		case StageFailed:
			logStageFailure(logger, e, fields)

		case TargetQueued:
			logger.Debug(targetPrefix(e)+"Queued "+e.Target, fields...)
		case TargetAdmitted:
			logger.Debug(targetPrefix(e)+"Admitted "+e.Target, fields...)
		case AttemptStarted:
			logger.Info(fmt.Sprintf("%sStarting deployment on %s (%s) - Attempt %d/%d",
				targetPrefix(e), e.Target, e.Address, e.Attempt, e.MaxAttempts), fields...)
		case AttemptFinished:
			logger.Debug(fmt.Sprintf("%sAttempt %d/%d on %s finished", targetPrefix(e), e.Attempt, e.MaxAttempts, e.Target), fields...)
		case TargetRetrying:
			logger.Warn(fmt.Sprintf("%s%s attempt %d/%d failed (%s), retrying",
				targetPrefix(e), e.Target, e.Attempt, e.MaxAttempts, payloadString(e, "kind")), fields...)
		case TargetSucceeded:
			logger.Info(fmt.Sprintf("%s✓ Deployment successful on %s (%d attempt(s), %s)",
				targetPrefix(e), e.Target, e.Attempt, e.Duration.Round(time.Second)), fields...)
		case TargetFailed:
			logger.Error(fmt.Sprintf("%s✗ Deployment failed on %s after %d attempt(s)",
				targetPrefix(e), e.Target, e.Attempt), fields...)
		case TargetTimeout:
			logger.Error(fmt.Sprintf("%s✗ Deployment timed out on %s after %d attempt(s)",
				targetPrefix(e), e.Target, e.Attempt), fields...)
		case TargetError:
			logger.Error(fmt.Sprintf("%s✗ Deployment error on %s: %s", targetPrefix(e), e.Target, e.Error), fields...)

		default:
			logger.Debug(e.String(), fields...)
		}
	}
}

func logStageFailure(logger *zap.Logger, e Event, fields []zap.Field) {
	log := logger.Warn
	msg := fmt.Sprintf("⚠ Stage %s failed, continuing", e.Stage)
	if critical, _ := payloadValue(e, "critical").(bool); critical {
		log = logger.Error
		msg = fmt.Sprintf("✗ Critical stage %s failed", e.Stage)
	}
	log(msg, fields...)

	tail, _ := payloadValue(e, "tail").([]string)
	if len(tail) == 0 {
		return
	}
	log(fmt.Sprintf("Last %d lines of %s:", len(tail), e.LogPath))
	for _, line := range tail {
		log("  " + line)
	}
}

func targetPrefix(e Event) string {
	if e.Group == nil {
		return ""
	}
	return fmt.Sprintf("[%3d] ", *e.Group)
}

func eventFields(e Event) []zap.Field {
	fields := []zap.Field{zap.String("event", string(e.Type))}
	if e.Target != "" {
		fields = append(fields, zap.String("target", e.Target))
	}
	if e.Stage != "" {
		fields = append(fields, zap.String("stage", e.Stage))
	}
	if e.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", e.Attempt))
	}
	if e.ExitCode != nil {
		fields = append(fields, zap.Int("exit_code", *e.ExitCode))
	}
	if e.LogPath != "" {
		fields = append(fields, zap.String("log", e.LogPath))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	if m, ok := e.Payload.(map[string]any); ok {
		for k, v := range m {
			if k == "tail" {
				continue
			}
			fields = append(fields, zap.Any(k, v))
		}
	}
	return fields
}

func payloadValue(e Event, key string) any {
	m, ok := e.Payload.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

func payloadString(e Event, key string) string {
	if v := payloadValue(e, key); v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// Collector records events in dispatch order
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Handler returns the handler to subscribe
func (c *Collector) Handler() Handler {
	return func(e Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, e)
	}
}

// Events returns a copy of the recorded events
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Types returns the recorded event types in order
func (c *Collector) Types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// ForTarget returns the recorded events for one target in order
func (c *Collector) ForTarget(name string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Target == name {
			out = append(out, e)
		}
	}
	return out
}
