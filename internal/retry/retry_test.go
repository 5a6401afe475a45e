package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name        string
		attempt     int
		maxAttempts int
		kind        Kind
		want        bool
	}{
		{"failure first of three", 1, 3, KindFailure, true},
		{"failure second of three", 2, 3, KindFailure, true},
		{"failure last attempt", 3, 3, KindFailure, false},
		{"timeout first of three", 1, 3, KindTimeout, true},
		{"timeout last attempt", 3, 3, KindTimeout, false},
		{"error never retries", 1, 3, KindError, false},
		{"error with large ceiling", 1, 100, KindError, false},
		{"single attempt allowed", 1, 1, KindFailure, false},
		{"unknown kind", 1, 3, Kind(42), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetry(tt.attempt, tt.maxAttempts, tt.kind))
			assert.Equal(t, tt.want, Policy{MaxAttempts: tt.maxAttempts}.ShouldRetry(tt.attempt, tt.kind))
		})
	}
}

func TestShouldRetry_AttemptCountMatchesCeiling(t *testing.T) {
	for maxAttempts := 1; maxAttempts <= 5; maxAttempts++ {
		attempts := 0
		for {
			attempts++
			if !ShouldRetry(attempts, maxAttempts, KindFailure) {
				break
			}
		}
		assert.Equal(t, maxAttempts, attempts)
	}
}

func TestPolicyWait_SleepsForDelay(t *testing.T) {
	p := Policy{MaxAttempts: 2, Delay: 20 * time.Millisecond}

	start := time.Now()
	err := p.Wait(context.Background())

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPolicyWait_ZeroDelay(t *testing.T) {
	p := Policy{MaxAttempts: 2}
	assert.NoError(t, p.Wait(context.Background()))
}

func TestPolicyWait_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Delay: time.Minute}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Wait(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "failure", KindFailure.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
