package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cyberbalsa/gci-goad/internal/events"
	"github.com/cyberbalsa/gci-goad/internal/remote"
	"github.com/cyberbalsa/gci-goad/internal/retry"
	"github.com/cyberbalsa/gci-goad/internal/target"
)

// outcome is the classification of one attempt
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeTimeout
	outcomeError
	outcomeCancelled
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeFailure:
		return "failure"
	case outcomeTimeout:
		return "timeout"
	case outcomeError:
		return "error"
	case outcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// classify maps a runner result onto an attempt outcome. Anything that is
// neither an exit code nor a timeout is an environment error and is not
// retried.
func classify(ctx context.Context, res remote.Result, err error) outcome {
	switch {
	case err == nil && res.ExitCode == 0:
		return outcomeSuccess
	case err == nil:
		return outcomeFailure
	case errors.Is(err, remote.ErrTimeout):
		return outcomeTimeout
	case ctx.Err() != nil:
		return outcomeCancelled
	default:
		return outcomeError
	}
}

// retryKind maps an attempt outcome onto the retry policy's failure kind
func (o outcome) retryKind() retry.Kind {
	switch o {
	case outcomeFailure:
		return retry.KindFailure
	case outcomeTimeout:
		return retry.KindTimeout
	default:
		return retry.KindError
	}
}

// runTarget is the per-target attempt loop. It holds one admission slot
// from the first attempt until the target is terminal.
func (s *Scheduler) runTarget(ctx context.Context, t target.Target) {
	logger := s.deps.Logger.With(zap.String("target", t.Name))

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finish(t, target.StatusError, 0, nil, ErrCancelled)
		return
	}
	defer s.sem.Release(1)

	s.admit(1)
	defer s.admit(-1)

	logPath := TargetLogPath(s.cfg.LogDir, t.Name, s.cfg.RunStamp)
	_ = s.deps.Ledger.Update(t.Name, func(tg *target.Target) {
		tg.LogFile = logPath
		s.deps.Bus.Emit(s.targetEvent(events.TargetAdmitted, t).WithLogPath(logPath))
	})
	tlog := newTargetLog(logPath)

	command := ExpandCommand(s.cfg.Command, s.cfg.Provider, t)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			s.finish(t, target.StatusError, attempt-1, nil, ErrCancelled)
			return
		}

		err := s.deps.Ledger.Transition(t.Name, target.StatusRunning, func(tg *target.Target) {
			tg.Attempts = attempt
			s.deps.Bus.Emit(s.targetEvent(events.AttemptStarted, t).WithAttempt(attempt, s.cfg.MaxAttempts))
		})
		if err != nil {
			logger.Error("cannot start attempt", zap.Error(err))
			return
		}

		started := time.Now()
		res, runErr := s.deps.Runner.Run(ctx, t, command, s.cfg.AttemptTimeout)
		elapsed := time.Since(started)
		result := classify(ctx, res, runErr)

		if err := tlog.append(attemptRecord{
			Attempt:     attempt,
			MaxAttempts: s.cfg.MaxAttempts,
			Started:     started,
			Elapsed:     elapsed,
			Command:     res.Command,
			Result:      res,
			Outcome:     result,
			Timeout:     s.cfg.AttemptTimeout,
			Err:         runErr,
		}); err != nil {
			logger.Warn("failed to write target log", zap.String("log", logPath), zap.Error(err))
		}

		stdout, stderr := outputLines(res, result, runErr, s.cfg.AttemptTimeout)
		s.deps.Bus.Emit(s.targetEvent(events.AttemptFinished, t).
			WithAttempt(attempt, s.cfg.MaxAttempts).
			WithExitCode(res.ExitCode).
			WithDuration(elapsed).
			WithPayload(map[string]any{"kind": result.String()}))

		switch result {
		case outcomeSuccess:
			s.finish(t, target.StatusSuccess, attempt, func(tg *target.Target) {
				tg.StdoutLines, tg.StderrLines = stdout, stderr
			}, nil)
			return

		case outcomeCancelled:
			s.finish(t, target.StatusError, attempt, func(tg *target.Target) {
				tg.StdoutLines, tg.StderrLines = stdout, stderr
			}, ErrCancelled)
			return

		case outcomeError:
			s.finish(t, target.StatusError, attempt, func(tg *target.Target) {
				tg.StdoutLines, tg.StderrLines = stdout, stderr
			}, runErr)
			return
		}

		if !s.policy.ShouldRetry(attempt, result.retryKind()) {
			terminal := target.StatusFailed
			if result == outcomeTimeout {
				terminal = target.StatusTimeout
			}
			s.finish(t, terminal, attempt, func(tg *target.Target) {
				tg.StdoutLines, tg.StderrLines = stdout, stderr
			}, nil)
			return
		}

		_ = s.deps.Ledger.Transition(t.Name, target.StatusRetrying, func(tg *target.Target) {
			tg.StdoutLines, tg.StderrLines = stdout, stderr
			s.deps.Bus.Emit(s.targetEvent(events.TargetRetrying, t).
				WithAttempt(attempt, s.cfg.MaxAttempts).
				WithExitCode(res.ExitCode).
				WithPayload(map[string]any{"kind": result.String(), "delay": s.cfg.RetryDelay.String()}))
		})

		if err := s.policy.Wait(ctx); err != nil {
			s.finish(t, target.StatusError, attempt, nil, ErrCancelled)
			return
		}
	}
}

// finish moves a target to a terminal status and emits the matching event
// under the ledger lock
func (s *Scheduler) finish(t target.Target, status target.Status, attempt int, update func(*target.Target), cause error) {
	err := s.deps.Ledger.Transition(t.Name, status, func(tg *target.Target) {
		if update != nil {
			update(tg)
		}
		if cause != nil && len(tg.StderrLines) == 0 {
			tg.StderrLines = []string{cause.Error()}
		}

		e := s.targetEvent(terminalEvent(status), t).
			WithAttempt(attempt, s.cfg.MaxAttempts).
			WithDuration(tg.Duration()).
			WithLogPath(tg.LogFile).
			WithError(cause)
		s.deps.Bus.Emit(e)
	})
	if err != nil {
		s.deps.Logger.Error("cannot finish target", zap.String("target", t.Name), zap.Error(err))
	}
}

func (s *Scheduler) targetEvent(typ events.EventType, t target.Target) events.Event {
	return events.NewEvent(typ, t.Name).WithAddress(t.Address).WithGroup(t.GroupID)
}

func terminalEvent(status target.Status) events.EventType {
	switch status {
	case target.StatusSuccess:
		return events.TargetSucceeded
	case target.StatusFailed:
		return events.TargetFailed
	case target.StatusTimeout:
		return events.TargetTimeout
	default:
		return events.TargetError
	}
}

// outputLines returns the lines kept on the target for the last attempt.
// Timeouts and errors without stderr get a synthetic line so the failure
// digest always has something to show.
func outputLines(res remote.Result, o outcome, err error, timeout time.Duration) (stdout, stderr []string) {
	stdout = remote.Lines(res.Stdout)
	stderr = remote.Lines(res.Stderr)
	if len(stderr) > 0 {
		return stdout, stderr
	}
	switch o {
	case outcomeTimeout:
		stderr = []string{fmt.Sprintf("timed out after %s", timeout)}
	case outcomeFailure:
		stderr = []string{fmt.Sprintf("exit code %d", res.ExitCode)}
	case outcomeCancelled:
		stderr = []string{ErrCancelled.Error()}
	case outcomeError:
		if err != nil {
			stderr = []string{err.Error()}
		}
	}
	return stdout, stderr
}
