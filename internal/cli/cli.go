// Package cli wires the goad-deploy commands.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyberbalsa/gci-goad/internal/config"
	"github.com/cyberbalsa/gci-goad/internal/remote"
)

// App represents the CLI application with all wired dependencies
type App struct {
	rootCmd *cobra.Command

	// Persistent flags
	configPath string
	logLevel   string

	versionInfo VersionInfo

	// stdout and stderr are the process streams; tests replace them
	stdout io.Writer
	stderr io.Writer

	// isTerminal reports whether stdout is an interactive terminal
	isTerminal func() bool

	// newRunner builds the remote transport for a run
	newRunner func(cfg *config.Config) (remote.Runner, func(), error)
}

// VersionInfo holds build-time version information
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// New creates a new CLI application
func New() *App {
	app := &App{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		isTerminal: stdoutIsTerminal,
		newRunner:  newRunner,
	}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetArgs overrides the command-line arguments (for tests)
func (a *App) SetArgs(args []string) {
	a.rootCmd.SetArgs(args)
}

// SetOutput redirects the application's stdout and stderr
func (a *App) SetOutput(stdout, stderr io.Writer) {
	a.stdout = stdout
	a.stderr = stderr
	a.rootCmd.SetOut(stdout)
	a.rootCmd.SetErr(stderr)
}

// SetVersion sets the version string for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.versionInfo = VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// setupRootCmd configures the root Cobra command
func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "goad-deploy",
		Short: "Deploy GOAD labs across many networks in parallel",
		Long: `goad-deploy prepares every deployment box with the configured stages,
then installs GOAD on all of them at once with a bounded number of
concurrent jobs, retrying failed and timed-out deployments.

All output is logged under the log directory: one file per stage, one file
per target, and a run log with the final summary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Config file (default "+config.DefaultConfigFile+" in the working directory)")
	a.rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")

	a.rootCmd.AddCommand(
		NewRunCmd(a),
		NewTargetsCmd(a),
		NewHistoryCmd(a),
		NewVersionCmd(a),
	)
}

// loadConfig loads the config file and applies the persistent flags
func (a *App) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	return cfg, nil
}
