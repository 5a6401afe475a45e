// Package orchestrator drives one deployment run end to end: inventory,
// preparation stages, scheduler fan-out, summary and history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cyberbalsa/gci-goad/internal/events"
	"github.com/cyberbalsa/gci-goad/internal/history"
	"github.com/cyberbalsa/gci-goad/internal/inventory"
	"github.com/cyberbalsa/gci-goad/internal/remote"
	"github.com/cyberbalsa/gci-goad/internal/report"
	"github.com/cyberbalsa/gci-goad/internal/scheduler"
	"github.com/cyberbalsa/gci-goad/internal/stage"
	"github.com/cyberbalsa/gci-goad/internal/target"
)

// StampLayout formats the run timestamp used in log file names
const StampLayout = "20060102_150405"

// Config holds orchestrator-specific configuration
type Config struct {
	Provider string

	Concurrency    int
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
	LaunchStagger  time.Duration

	// Command is the remote job template
	Command string

	LogDir string

	// RunLog is the run-level log file, shown in the summary
	RunLog string

	// Stamp names this run's log files. Derived from the start time if empty.
	Stamp string

	Stages []stage.Stage

	// SkipStages reports every stage as skipped and goes straight to fan-out
	SkipStages bool

	// DryRun prints the plan without running anything
	DryRun bool
}

// Dependencies bundles external dependencies for injection
type Dependencies struct {
	Targets     inventory.Source
	Runner      remote.Runner
	StageRunner stage.Runner
	Bus         *events.Bus
	Logger      *zap.Logger

	// History records the run when non-nil
	History *history.DB

	// Stdout receives the dry-run plan
	Stdout io.Writer
}

// Result represents the outcome of a run
type Result struct {
	RunID   string
	Summary report.Summary

	// Targets is the final ledger snapshot
	Targets []target.Target
	Stages  []stage.Result

	// Aborted is set when a critical stage stopped the run before fan-out
	Aborted bool

	// Cancelled is set when the run was interrupted
	Cancelled bool
}

// Orchestrator coordinates one deployment run
type Orchestrator struct {
	cfg  Config
	deps Dependencies
	now  func() time.Time
}

// New creates an orchestrator with the given configuration and dependencies
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if deps.Targets == nil {
		return nil, errors.New("orchestrator requires a target source")
	}
	if deps.Runner == nil && !cfg.DryRun {
		return nil, errors.New("orchestrator requires a remote runner")
	}
	if deps.StageRunner == nil {
		deps.StageRunner = stage.ExecRunner{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	return &Orchestrator{cfg: cfg, deps: deps, now: time.Now}, nil
}

// Run executes the whole run. It returns *stage.CriticalError when a
// critical stage fails and ctx.Err() when interrupted; in both cases the
// returned Result is still populated.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	start := o.now()
	runID := ulid.Make().String()
	stamp := o.cfg.Stamp
	if stamp == "" {
		stamp = start.Format(StampLayout)
	}
	logger := o.deps.Logger.With(zap.String("run_id", runID))

	targets, err := o.deps.Targets.ListTargets()
	if err != nil {
		return nil, fmt.Errorf("loading targets: %w", err)
	}
	if len(targets) == 0 {
		logger.Warn("No targets found in inventory, nothing to deploy")
		return &Result{RunID: runID, Summary: report.Summarize(nil, 0)}, nil
	}

	if o.cfg.DryRun {
		return o.dryRun(runID, targets)
	}

	if err := os.MkdirAll(o.cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	ledger, err := target.NewLedger(targets)
	if err != nil {
		return nil, err
	}
	result := &Result{RunID: runID}

	o.deps.Bus.Emit(events.NewEvent(events.RunStarted, "").WithPayload(map[string]any{
		"run_id":       runID,
		"targets":      len(targets),
		"concurrency":  o.cfg.Concurrency,
		"max_attempts": o.cfg.MaxAttempts,
		"provider":     o.cfg.Provider,
	}))
	logger.Info(fmt.Sprintf("Deploying to %d target(s), concurrency %d, up to %d attempt(s) each",
		len(targets), o.cfg.Concurrency, o.cfg.MaxAttempts))

	seq := &stage.Sequence{
		Runner: o.deps.StageRunner,
		LogDir: o.cfg.LogDir,
		Stamp:  stamp,
		Logger: logger,
		Bus:    o.deps.Bus,
	}
	if o.cfg.SkipStages {
		seq.Skip(o.cfg.Stages)
	} else {
		result.Stages, err = seq.Run(ctx, o.cfg.Stages)
		if err != nil {
			return o.stopBeforeFanOut(ctx, result, ledger, start, err)
		}
	}

	sched, err := scheduler.New(scheduler.Config{
		Concurrency:    o.cfg.Concurrency,
		MaxAttempts:    o.cfg.MaxAttempts,
		AttemptTimeout: o.cfg.AttemptTimeout,
		RetryDelay:     o.cfg.RetryDelay,
		LaunchStagger:  o.cfg.LaunchStagger,
		Command:        o.cfg.Command,
		Provider:       o.cfg.Provider,
		LogDir:         o.cfg.LogDir,
		RunStamp:       stamp,
	}, scheduler.Deps{
		Runner: o.deps.Runner,
		Ledger: ledger,
		Bus:    o.deps.Bus,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	runErr := sched.Run(ctx)
	result.Cancelled = runErr != nil
	o.finish(result, ledger, start)

	o.deps.Bus.Emit(events.NewEvent(events.RunCompleted, "").
		WithDuration(result.Summary.Duration).
		WithPayload(map[string]any{
			"run_id":         runID,
			"success":        result.Summary.Success,
			"failed":         result.Summary.Failed,
			"timeout":        result.Summary.Timeout,
			"error":          result.Summary.Error,
			"total_attempts": result.Summary.TotalAttempts,
			"cancelled":      result.Cancelled,
		}))
	o.deps.Bus.Wait()

	status := history.RunStatusCompleted
	if result.Cancelled {
		status = history.RunStatusCancelled
	}
	o.record(logger, result, status, start, "")

	return result, runErr
}

// stopBeforeFanOut handles a stage sequence that did not complete: a
// critical failure aborts the run, an interrupt cancels it. No target runs.
func (o *Orchestrator) stopBeforeFanOut(ctx context.Context, result *Result, ledger *target.Ledger, start time.Time, err error) (*Result, error) {
	logger := o.deps.Logger.With(zap.String("run_id", result.RunID))
	o.finish(result, ledger, start)

	var critical *stage.CriticalError
	if errors.As(err, &critical) {
		result.Aborted = true
		o.deps.Bus.Emit(events.NewEvent(events.RunAborted, "").
			WithStage(critical.Result.Stage).
			WithLogPath(critical.Result.LogPath).
			WithError(err))
		o.deps.Bus.Wait()
		o.record(logger, result, history.RunStatusAborted, start, critical.Result.Stage)
		return result, err
	}

	if ctx.Err() != nil {
		result.Cancelled = true
		o.deps.Bus.Wait()
		o.record(logger, result, history.RunStatusCancelled, start, "")
		return result, ctx.Err()
	}
	return result, err
}

func (o *Orchestrator) finish(result *Result, ledger *target.Ledger, start time.Time) {
	result.Targets = ledger.Snapshot()
	result.Summary = report.Summarize(result.Targets, o.now().Sub(start))
	result.Summary.LogDir = o.cfg.LogDir
	result.Summary.RunLog = o.cfg.RunLog
}

// record writes the run to history. Failures are logged, never fatal.
func (o *Orchestrator) record(logger *zap.Logger, result *Result, status history.RunStatus, start time.Time, abortedStage string) {
	if o.deps.History == nil {
		return
	}

	run := history.RunRecord{
		ID:           result.RunID,
		Status:       status,
		Provider:     o.cfg.Provider,
		Concurrency:  o.cfg.Concurrency,
		MaxAttempts:  o.cfg.MaxAttempts,
		StartedAt:    start,
		EndedAt:      start.Add(result.Summary.Duration),
		AbortedStage: abortedStage,
	}.WithSummary(result.Summary)

	var rows []history.TargetRecord
	if !result.Aborted {
		rows = history.TargetRecords(result.RunID, result.Targets)
	}
	if err := o.deps.History.RecordRun(run, rows); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}

// dryRun prints the plan without running stages or remote jobs
func (o *Orchestrator) dryRun(runID string, targets []target.Target) (*Result, error) {
	w := o.deps.Stdout

	fmt.Fprintf(w, "Deployment Plan\n")
	fmt.Fprintf(w, "===============\n\n")
	fmt.Fprintf(w, "Provider:        %s\n", o.cfg.Provider)
	fmt.Fprintf(w, "Targets:         %d\n", len(targets))
	fmt.Fprintf(w, "Concurrency:     %d\n", o.cfg.Concurrency)
	fmt.Fprintf(w, "Max attempts:    %d\n", o.cfg.MaxAttempts)
	fmt.Fprintf(w, "Attempt timeout: %s\n", o.cfg.AttemptTimeout)
	fmt.Fprintf(w, "Retry delay:     %s\n", o.cfg.RetryDelay)
	fmt.Fprintf(w, "Log directory:   %s\n\n", o.cfg.LogDir)

	fmt.Fprintf(w, "Stages:\n")
	switch {
	case o.cfg.SkipStages:
		fmt.Fprintf(w, "  (skipped)\n")
	case len(o.cfg.Stages) == 0:
		fmt.Fprintf(w, "  (none)\n")
	}
	if !o.cfg.SkipStages {
		for i, s := range o.cfg.Stages {
			fmt.Fprintf(w, "  %d. %s [%s, timeout %s]\n", i+1, s.Name, s.Policy, s.Timeout)
			if s.Workdir != "" {
				fmt.Fprintf(w, "     cd %s && %s\n", s.Workdir, strings.Join(s.Args, " "))
			} else {
				fmt.Fprintf(w, "     %s\n", strings.Join(s.Args, " "))
			}
		}
	}

	fmt.Fprintf(w, "\nTargets:\n")
	for _, t := range targets {
		fmt.Fprintf(w, "  [%3d] %s\n", t.GroupID, t)
		fmt.Fprintf(w, "        %s\n", scheduler.ExpandCommand(o.cfg.Command, o.cfg.Provider, t))
	}

	return &Result{
		RunID:   runID,
		Targets: targets,
		Summary: report.Summarize(targets, 0),
	}, nil
}
