// Package remote runs the provisioning command on a single target.
//
// A Runner is stateless between calls: every Run dials, executes, captures
// stdout and stderr in full and returns. Two kinds of failure are reported
// as errors rather than exit codes:
//
//   - ErrTimeout when the attempt outlives its timeout
//   - *InvocationError when the runner cannot be used at all (no
//     credentials, missing binary); callers must not retry these
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// ExitConnectFailure is the exit code reported when the transport cannot
// reach or authenticate to the target. It matches the OpenSSH client.
const ExitConnectFailure = 255

// ErrTimeout is returned when an attempt exceeds its timeout
var ErrTimeout = errors.New("remote job timed out")

// InvocationError reports an environment problem that makes the runner unusable
type InvocationError struct {
	Target string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("cannot run remote job on %s: %v", e.Target, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsInvocationError reports whether err is (or wraps) an InvocationError
func IsInvocationError(err error) bool {
	var inv *InvocationError
	return errors.As(err, &inv)
}

// Result is the captured outcome of one remote job
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string

	// Command is the invocation as it should appear in logs, secrets redacted
	Command string
}

// Runner executes a command on a target
type Runner interface {
	Run(ctx context.Context, t target.Target, command string, timeout time.Duration) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, t target.Target, command string, timeout time.Duration) (Result, error)

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, t target.Target, command string, timeout time.Duration) (Result, error) {
	return f(ctx, t, command, timeout)
}

// Lines splits captured output into lines, dropping one trailing newline
func Lines(output string) []string {
	if output == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(output, "\n"), "\n")
}

// contextErr maps an attempt context's error onto the package errors:
// deadline means ErrTimeout, cancellation passes through unchanged.
func contextErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}
