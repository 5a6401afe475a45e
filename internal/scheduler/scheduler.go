// Package scheduler fans the provisioning command out over every target
// of a run. At most Concurrency targets hold an admission slot at once,
// and a target keeps its slot for its whole attempt sequence, backoff
// included.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cyberbalsa/gci-goad/internal/events"
	"github.com/cyberbalsa/gci-goad/internal/remote"
	"github.com/cyberbalsa/gci-goad/internal/retry"
	"github.com/cyberbalsa/gci-goad/internal/target"
)

// ErrCancelled is recorded on targets that end because the run was interrupted
var ErrCancelled = errors.New("run cancelled")

// Config holds scheduler configuration
type Config struct {
	// Concurrency is K, the number of admission slots
	Concurrency int

	// MaxAttempts is R, the attempt ceiling per target
	MaxAttempts int

	// AttemptTimeout is T, the hard limit on one remote job
	AttemptTimeout time.Duration

	// RetryDelay is D, the fixed pause between attempts
	RetryDelay time.Duration

	// LaunchStagger spaces out goroutine launches
	LaunchStagger time.Duration

	// Command is the remote command template; see ExpandCommand
	Command  string
	Provider string

	LogDir   string
	RunStamp string
}

// Validate checks the configuration
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("attempt timeout must be positive, got %s", c.AttemptTimeout))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry delay must not be negative, got %s", c.RetryDelay))
	}
	if c.LaunchStagger < 0 {
		errs = append(errs, fmt.Errorf("launch stagger must not be negative, got %s", c.LaunchStagger))
	}
	if strings.TrimSpace(c.Command) == "" {
		errs = append(errs, errors.New("remote command is empty"))
	}
	return errors.Join(errs...)
}

// Deps bundles the scheduler's collaborators
type Deps struct {
	Runner remote.Runner

	// Ledger is the run's status table and its single lock
	Ledger *target.Ledger

	// Bus receives target events. Events are emitted while the ledger lock
	// is held, so handlers must never call back into the ledger.
	Bus    *events.Bus
	Logger *zap.Logger
}

// Scheduler runs every target of a ledger to a terminal state
type Scheduler struct {
	cfg    Config
	deps   Deps
	policy retry.Policy
	sem    *semaphore.Weighted

	mu       sync.Mutex
	admitted int
	peak     int
}

// New creates a scheduler
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Runner == nil {
		return nil, errors.New("scheduler requires a remote runner")
	}
	if deps.Ledger == nil {
		return nil, errors.New("scheduler requires a target ledger")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Scheduler{
		cfg:    cfg,
		deps:   deps,
		policy: retry.Policy{MaxAttempts: cfg.MaxAttempts, Delay: cfg.RetryDelay},
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
	}, nil
}

// Run launches one goroutine per target and blocks until every target is
// terminal. Cancelling ctx stops admission and backoff; targets caught
// waiting end in error. Run returns ctx.Err() if the run was interrupted.
func (s *Scheduler) Run(ctx context.Context) error {
	targets := s.deps.Ledger.Snapshot()

	var wg sync.WaitGroup
	for i, t := range targets {
		if i > 0 && s.cfg.LaunchStagger > 0 && ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.LaunchStagger):
			}
		}

		s.deps.Bus.Emit(events.NewEvent(events.TargetQueued, t.Name).
			WithAddress(t.Address).
			WithGroup(t.GroupID).
			WithAttempt(0, s.cfg.MaxAttempts))

		wg.Add(1)
		go func(t target.Target) {
			defer wg.Done()
			s.runTarget(ctx, t)
		}(t)
	}

	wg.Wait()
	return ctx.Err()
}

// PeakAdmitted returns the highest number of targets that held a slot at once
func (s *Scheduler) PeakAdmitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *Scheduler) admit(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admitted += delta
	if s.admitted > s.peak {
		s.peak = s.admitted
	}
}

// ExpandCommand substitutes {provider}, {name}, {address} and {group}
func ExpandCommand(template, provider string, t target.Target) string {
	return strings.NewReplacer(
		"{provider}", provider,
		"{name}", t.Name,
		"{address}", t.Address,
		"{group}", strconv.Itoa(t.GroupID),
	).Replace(template)
}
