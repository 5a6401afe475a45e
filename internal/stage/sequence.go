package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cyberbalsa/gci-goad/internal/events"
)

// DefaultTailLines is how much of a failed stage's log is surfaced
const DefaultTailLines = 20

// CriticalError aborts the run when a critical stage does not succeed
type CriticalError struct {
	Result Result
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("critical stage %s failed: %s (see %s)", e.Result.Stage, e.Result.Reason(), e.Result.LogPath)
}

// Sequence runs stages one at a time, in order, applying each stage's policy
type Sequence struct {
	Runner Runner
	LogDir string

	// Stamp is the run timestamp used in stage log names
	Stamp string

	Logger *zap.Logger
	Bus    *events.Bus

	// TailLines is how many trailing log lines a failure surfaces.
	// If zero, DefaultTailLines is used.
	TailLines int
}

// Run executes stages in order. A critical failure stops the sequence and
// returns *CriticalError; best-effort failures are reported and skipped
// past. A stage that fails after ctx is done returns the context error
// instead. The results of every stage that ran are returned.
func (s *Sequence) Run(ctx context.Context, stages []Stage) ([]Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tailLines := s.TailLines
	if tailLines == 0 {
		tailLines = DefaultTailLines
	}

	results := make([]Result, 0, len(stages))
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("stages interrupted before %s: %w", st.Name, err)
		}

		logPath := LogPath(s.LogDir, st.Name, s.Stamp)
		logger.Debug("stage command",
			zap.String("stage", st.Name),
			zap.Strings("args", st.Args),
			zap.String("workdir", st.Workdir),
			zap.Duration("timeout", st.Timeout),
		)
		s.Bus.Emit(events.NewEvent(events.StageStarted, "").WithStage(st.Name).WithLogPath(logPath))

		res := s.Runner.Run(ctx, st, logPath)
		res.Stage = st.Name
		res.LogPath = logPath
		results = append(results, res)

		if res.Succeeded() {
			s.Bus.Emit(events.NewEvent(events.StageCompleted, "").
				WithStage(st.Name).
				WithExitCode(res.ExitCode).
				WithDuration(res.Duration).
				WithLogPath(logPath))
			continue
		}

		critical := st.Policy == PolicyCritical
		failed := events.NewEvent(events.StageFailed, "").
			WithStage(st.Name).
			WithDuration(res.Duration).
			WithLogPath(logPath).
			WithPayload(map[string]any{
				"critical": critical,
				"reason":   res.Reason(),
				"tail":     Tail(logPath, tailLines),
			})
		if res.Err == nil {
			failed = failed.WithExitCode(res.ExitCode)
		} else {
			failed = failed.WithError(res.Err)
		}
		s.Bus.Emit(failed)

		// A stage killed by an interrupt is a cancelled run, not a stage failure
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("stage %s interrupted: %w", st.Name, err)
		}
		if critical {
			return results, &CriticalError{Result: res}
		}
	}
	return results, nil
}

// Skip reports every stage as skipped without running it
func (s *Sequence) Skip(stages []Stage) {
	for _, st := range stages {
		s.Bus.Emit(events.NewEvent(events.StageSkipped, "").WithStage(st.Name))
	}
}
