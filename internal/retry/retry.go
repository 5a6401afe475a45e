// Package retry decides whether a failed deployment attempt is tried again.
package retry

import (
	"context"
	"time"
)

// Kind classifies how an attempt went wrong
type Kind int

const (
	// KindFailure means the remote job ran and exited non-zero
	KindFailure Kind = iota

	// KindTimeout means the remote job did not return within the attempt timeout
	KindTimeout

	// KindError means the runner itself could not be invoked. Never retried.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindFailure:
		return "failure"
	case KindTimeout:
		return "timeout"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Policy controls retry behavior for one run
type Policy struct {
	// MaxAttempts is the maximum number of attempts per target, including the first
	MaxAttempts int

	// Delay is the fixed pause between attempts
	Delay time.Duration
}

// ShouldRetry reports whether another attempt follows attempt number
// attempt (1-based). Failures and timeouts retry while attempt < maxAttempts;
// errors never retry.
func ShouldRetry(attempt, maxAttempts int, kind Kind) bool {
	switch kind {
	case KindFailure, KindTimeout:
		return attempt < maxAttempts
	default:
		return false
	}
}

// ShouldRetry applies the package-level decision with this policy's ceiling
func (p Policy) ShouldRetry(attempt int, kind Kind) bool {
	return ShouldRetry(attempt, p.MaxAttempts, kind)
}

// Wait sleeps for the policy delay. It returns ctx.Err() if the context
// ends first.
func (p Policy) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
