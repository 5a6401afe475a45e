package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/cyberbalsa/gci-goad/internal/cli/tui"
	"github.com/cyberbalsa/gci-goad/internal/config"
	"github.com/cyberbalsa/gci-goad/internal/events"
	"github.com/cyberbalsa/gci-goad/internal/history"
	"github.com/cyberbalsa/gci-goad/internal/inventory"
	"github.com/cyberbalsa/gci-goad/internal/logging"
	"github.com/cyberbalsa/gci-goad/internal/orchestrator"
	"github.com/cyberbalsa/gci-goad/internal/remote"
	"github.com/cyberbalsa/gci-goad/internal/report"
	"github.com/cyberbalsa/gci-goad/internal/stage"
)

// eventBufferSize is the event bus capacity for a run
const eventBufferSize = 1000

// RunOptions holds flags for the run command
type RunOptions struct {
	Inventory   string
	Threads     int
	Retries     int
	LogDir      string
	Provider    string
	Timeout     time.Duration
	RetryDelay  time.Duration
	Stagger     time.Duration
	SkipStages  bool
	DryRun      bool
	NoTUI       bool
	JSON        bool
	ForceTUI    bool
	changedOnly map[string]bool
}

// Validate checks RunOptions for validity
func (opts RunOptions) Validate() error {
	if opts.changedOnly["threads"] && opts.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", opts.Threads)
	}
	if opts.changedOnly["retries"] && opts.Retries < 0 {
		return fmt.Errorf("retries must be non-negative, got %d", opts.Retries)
	}
	if opts.changedOnly["timeout"] && opts.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", opts.Timeout)
	}
	if opts.NoTUI && opts.ForceTUI {
		return errors.New("--no-tui and --tui are mutually exclusive")
	}
	return nil
}

// NewRunCmd creates the run command
func NewRunCmd(app *App) *cobra.Command {
	opts := RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Prepare the deployment boxes and install GOAD on every target",
		Long: `Run the preparation stages in order, then install GOAD on every target in
the inventory with at most --threads jobs in flight. Failed and timed-out
targets are retried up to --retries attempts in total.

The run ends with a summary. Target failures do not change the exit code;
a failed critical stage or an interrupt does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.changedOnly = changedFlags(cmd)
			if err := opts.Validate(); err != nil {
				return err
			}
			return app.RunDeploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Inventory, "inventory", "i", "", "Inventory file (INI or YAML)")
	cmd.Flags().IntVarP(&opts.Threads, "threads", "j", config.DefaultConcurrency, "Maximum concurrent deployments")
	cmd.Flags().IntVarP(&opts.Retries, "retries", "r", config.DefaultMaxAttempts, "Attempts per target, including the first")
	cmd.Flags().StringVar(&opts.LogDir, "log-dir", "", "Directory for run, stage and target logs")
	cmd.Flags().StringVarP(&opts.Provider, "provider", "p", "", "GOAD provider: proxmox, vmware, azure, aws")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Per-attempt timeout (default 2h)")
	cmd.Flags().DurationVar(&opts.RetryDelay, "retry-delay", 0, "Delay between attempts (default 10s)")
	cmd.Flags().DurationVar(&opts.Stagger, "stagger", 0, "Delay between target launches (default 100ms)")
	cmd.Flags().BoolVar(&opts.SkipStages, "skip-stages", false, "Skip the preparation stages")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the plan without running anything")
	cmd.Flags().BoolVar(&opts.NoTUI, "no-tui", false, "Disable the interactive display")
	cmd.Flags().BoolVar(&opts.ForceTUI, "tui", false, "Force the interactive display even when stdout is not a terminal")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Emit events as JSON lines on stdout")

	return cmd
}

// runFlagNames lists the run flags that override config values
var runFlagNames = []string{"inventory", "threads", "retries", "log-dir", "timeout", "retry-delay", "stagger"}

// changedFlags records which overriding flags were set on the command line
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	for _, name := range runFlagNames {
		if cmd.Flags().Changed(name) {
			changed[name] = true
		}
	}
	return changed
}

// applyRunOptions overlays explicitly set flags onto the loaded config
func applyRunOptions(cfg *config.Config, opts RunOptions) {
	set := opts.changedOnly
	if set["inventory"] {
		cfg.Inventory = opts.Inventory
	}
	if set["threads"] {
		cfg.Concurrency = opts.Threads
	}
	if set["retries"] {
		cfg.MaxAttempts = opts.Retries
	}
	if set["log-dir"] {
		cfg.LogDir = opts.LogDir
	}
	if set["timeout"] {
		cfg.AttemptTimeout = opts.Timeout.String()
	}
	if set["retry-delay"] {
		cfg.RetryDelay = opts.RetryDelay.String()
	}
	if set["stagger"] {
		cfg.LaunchStagger = opts.Stagger.String()
	}
}

// useTUI decides whether the interactive display owns the terminal
func (a *App) useTUI(opts RunOptions) bool {
	if opts.NoTUI || opts.JSON || opts.DryRun {
		return false
	}
	return opts.ForceTUI || a.isTerminal()
}

// RunDeploy executes one deployment run
func (a *App) RunDeploy(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	applyRunOptions(cfg, opts)

	provider, err := config.ResolveProviderFromEnv(opts.Provider, cfg)
	if err != nil {
		return err
	}
	cfg.Provider = provider.Type

	if err := cfg.Validate(); err != nil {
		return err
	}
	stages, err := cfg.StagePlan()
	if err != nil {
		return err
	}

	stamp := time.Now().Format(orchestrator.StampLayout)
	runLog := ""
	if !opts.DryRun {
		runLog = filepath.Join(cfg.LogDir, fmt.Sprintf("goad_deployment_%s.log", stamp))
	}

	interactive := a.useTUI(opts)

	var (
		program   *tea.Program
		model     *tui.Model
		logWriter *tui.LogWriter
		console   io.Writer = a.stdout
	)
	switch {
	case interactive:
		model = tui.NewModel(cfg.Concurrency, string(cfg.Provider))
		program = tea.NewProgram(model, tea.WithAltScreen())
		logWriter = tui.NewLogWriter(program)
		console = logWriter
	case opts.JSON:
		console = a.stderr
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    runLog,
		Console: console,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	logger.Debug("configuration loaded",
		zap.String("provider", string(cfg.Provider)),
		zap.String("provider_source", provider.Source),
		zap.String("inventory", cfg.Inventory))

	bus := events.NewBus(eventBufferSize)
	defer bus.Close()
	bus.Subscribe(events.LogHandler(logger))
	if opts.JSON {
		bus.Subscribe(events.JSONEmitterHandler(events.NewJSONEmitter(a.stdout), logger))
	}
	var bridge *tui.Bridge
	if interactive {
		bridge = tui.NewBridge(program)
		bus.Subscribe(bridge.Handler())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := NewSignalHandler(cancel, logger)
	signals.OnForce(func() {
		_ = closeLog()
		os.Exit(130)
	})
	signals.Start()
	defer signals.Stop()

	deps := orchestrator.Dependencies{
		Targets:     inventory.File{Path: cfg.Inventory, Group: cfg.InventoryGroup},
		StageRunner: stage.ExecRunner{},
		Bus:         bus,
		Logger:      logger,
		Stdout:      a.stdout,
	}

	if !opts.DryRun {
		runner, closeRunner, err := a.newRunner(cfg)
		if err != nil {
			return err
		}
		defer closeRunner()
		deps.Runner = runner

		db, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logger.Warn("run history disabled", zap.Error(err))
		} else {
			defer db.Close()
			deps.History = db
		}
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Provider:       string(cfg.Provider),
		Concurrency:    cfg.Concurrency,
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeoutDuration(),
		RetryDelay:     cfg.RetryDelayDuration(),
		LaunchStagger:  cfg.LaunchStaggerDuration(),
		Command:        cfg.Command,
		LogDir:         cfg.LogDir,
		RunLog:         runLog,
		Stamp:          stamp,
		Stages:         stages,
		SkipStages:     opts.SkipStages,
		DryRun:         opts.DryRun,
	}, deps)
	if err != nil {
		return err
	}

	var (
		result *orchestrator.Result
		runErr error
	)
	if interactive {
		result, runErr = runWithTUI(runCtx, cancel, orch, program, bridge, logWriter)
	} else {
		result, runErr = orch.Run(runCtx)
	}

	if result != nil && !opts.DryRun && !result.Aborted && result.Summary.Total > 0 {
		// Once the display has exited its log writer discards, so the
		// summary reaches the run log only and is rendered here instead.
		report.LogSummary(logger, result.Summary)
		if interactive {
			_ = report.Render(a.stdout, result.Summary, report.DefaultStyles())
		}
	}

	return exitError(result, runErr)
}

// runWithTUI runs the orchestrator while the program owns the terminal.
// Quitting the display cancels the run; the orchestrator is always joined
// before returning.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, orch *orchestrator.Orchestrator,
	program *tea.Program, bridge *tui.Bridge, logWriter *tui.LogWriter) (*orchestrator.Result, error) {

	type outcome struct {
		result *orchestrator.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := orch.Run(ctx)
		done <- outcome{result, err}
		bridge.SendDone()
	}()

	final, tuiErr := program.Run()
	if m, ok := final.(*tui.Model); ok && m.Quitting {
		cancel()
	}
	if tuiErr != nil {
		cancel()
	}

	out := <-done
	_ = logWriter.Close()

	if out.err == nil && tuiErr != nil {
		return out.result, fmt.Errorf("display: %w", tuiErr)
	}
	return out.result, out.err
}

// exitError maps a run outcome to the command's error. Target failures are
// reported in the summary and do not fail the command.
func exitError(result *orchestrator.Result, runErr error) error {
	if runErr == nil {
		return nil
	}
	var critical *stage.CriticalError
	switch {
	case errors.As(runErr, &critical):
		return fmt.Errorf("deployment aborted: %w", runErr)
	case errors.Is(runErr, context.Canceled):
		if result != nil && result.Summary.Total > 0 {
			return fmt.Errorf("deployment interrupted (%d/%d targets finished)",
				result.Summary.Total-result.Summary.Incomplete, result.Summary.Total)
		}
		return errors.New("deployment interrupted")
	default:
		return runErr
	}
}

// newRunner builds the remote transport selected in the config
func newRunner(cfg *config.Config) (remote.Runner, func(), error) {
	ssh := cfg.SSH
	switch ssh.Transport {
	case config.TransportOpenSSH:
		return remote.NewOpenSSHRunner(remote.OpenSSHConfig{
			User:          ssh.User,
			Password:      ssh.Password,
			KeyFile:       ssh.KeyFile,
			Port:          ssh.Port,
			Jump:          ssh.Jump,
			StrictHostKey: ssh.StrictHostKey,
			ExtraOptions:  ssh.ExtraOptions,
		}), func() {}, nil
	default:
		hostKeys, err := remote.HostKeyCallback(ssh.StrictHostKey, ssh.KnownHosts)
		if err != nil {
			return nil, nil, err
		}
		runner := remote.NewSSHRunner(remote.SSHConfig{
			User:            ssh.User,
			Password:        ssh.Password,
			KeyFile:         ssh.KeyFile,
			UseAgent:        ssh.UseAgent,
			Port:            ssh.Port,
			Jump:            ssh.Jump,
			DialTimeout:     ssh.DialTimeoutDuration(),
			HostKeyCallback: hostKeys,
		})
		return runner, func() { _ = runner.Close() }, nil
	}
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
