// Package stage runs the sequential preparation stages that precede target
// fan-out. Each stage is an external command whose combined output goes to
// its own log file under the run's log directory.
package stage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Policy decides what a stage failure does to the run
type Policy string

const (
	// PolicyCritical aborts the run on non-zero exit, timeout or invocation failure
	PolicyCritical Policy = "critical"

	// PolicyBestEffort logs the failure and lets the run continue
	PolicyBestEffort Policy = "best_effort"
)

// Valid reports whether p is a known policy
func (p Policy) Valid() bool {
	return p == PolicyCritical || p == PolicyBestEffort
}

// Stage is one external preparation step
type Stage struct {
	Name    string
	Workdir string

	// Args is the argv; Args[0] is the executable
	Args []string

	Timeout time.Duration
	Policy  Policy
}

// Result is the outcome of running one stage
type Result struct {
	Stage    string
	ExitCode int
	LogPath  string
	Duration time.Duration

	// TimedOut is set when the stage was killed at its timeout
	TimedOut bool

	// Err is set when the stage could not be invoked at all
	Err error
}

// Succeeded reports whether the stage ran to a zero exit
func (r Result) Succeeded() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// Reason describes why a stage did not succeed
func (r Result) Reason() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.TimedOut:
		return "timed out"
	case r.ExitCode != 0:
		return fmt.Sprintf("exit code %d", r.ExitCode)
	default:
		return ""
	}
}

// Runner executes one stage, writing its combined output to logPath
type Runner interface {
	Run(ctx context.Context, s Stage, logPath string) Result
}

// ExecRunner runs stages as local processes
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run executes the stage with os/exec and the stage timeout
func (ExecRunner) Run(ctx context.Context, s Stage, logPath string) Result {
	res := Result{Stage: s.Name, LogPath: logPath}
	if len(s.Args) == 0 {
		res.Err = errors.New("stage has no command")
		res.ExitCode = -1
		return res
	}

	logFile, err := os.Create(logPath)
	if err != nil {
		res.Err = fmt.Errorf("create stage log: %w", err)
		res.ExitCode = -1
		return res
	}
	defer func() { _ = logFile.Close() }()

	start := time.Now()
	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctxWithTimeout, s.Args[0], s.Args[1:]...)
	cmd.Dir = s.Workdir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.WaitDelay = 5 * time.Second

	err = cmd.Run()
	res.Duration = time.Since(start)

	if errors.Is(ctxWithTimeout.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		fmt.Fprintf(logFile, "\n--- stage %s timed out after %s ---\n", s.Name, s.Timeout)
		return res
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res
		}
		// Binary missing, bad workdir, cancelled before start
		res.Err = err
		res.ExitCode = -1
		fmt.Fprintf(logFile, "\n--- stage %s could not be run: %v ---\n", s.Name, err)
	}
	return res
}

// LogPath returns the deterministic log file for a stage in one run
func LogPath(logDir, stageName, stamp string) string {
	return filepath.Join(logDir, fmt.Sprintf("%s_%s.log", sanitize(stageName), stamp))
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

// Tail returns the last n lines of the file at path. A missing or
// unreadable file yields no lines.
func Tail(path string, n int) []string {
	if n <= 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring
}
