package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyberbalsa/gci-goad/internal/remote"
)

const (
	logTimeLayout = "2006-01-02 15:04:05"
	logRule       = "=================================================="
)

// TargetLogPath returns the cumulative attempt log for a target in one run
func TargetLogPath(logDir, name, stamp string) string {
	return filepath.Join(logDir, fmt.Sprintf("deploy_%s_%s.log", safeName(name), stamp))
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' || r == ':' {
			return '_'
		}
		return r
	}, name)
}

// attemptRecord is everything written to the target log for one attempt
type attemptRecord struct {
	Attempt     int
	MaxAttempts int
	Started     time.Time
	Elapsed     time.Duration
	Command     string
	Result      remote.Result
	Outcome     outcome
	Timeout     time.Duration
	Err         error
}

// targetLog appends attempt records to one target's log file. Only the
// goroutine that owns the target writes to it.
type targetLog struct {
	path string
}

func newTargetLog(path string) *targetLog {
	return &targetLog{path: path}
}

func (l *targetLog) append(rec attemptRecord) error {
	if l.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open target log: %w", err)
	}

	_, werr := f.WriteString(formatAttempt(rec))
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("write target log: %w", werr)
	}
	return cerr
}

func formatAttempt(rec attemptRecord) string {
	var b strings.Builder

	b.WriteString("\n" + logRule + "\n")
	fmt.Fprintf(&b, "Attempt %d/%d - %s\n", rec.Attempt, rec.MaxAttempts, rec.Started.Format(logTimeLayout))
	b.WriteString(logRule + "\n")
	if rec.Command != "" {
		fmt.Fprintf(&b, "Command: %s\n", rec.Command)
	}

	switch rec.Outcome {
	case outcomeTimeout:
		fmt.Fprintf(&b, "TIMEOUT: no result after %s\n", rec.Timeout)
	case outcomeError:
		fmt.Fprintf(&b, "ERROR: %v\n", rec.Err)
	case outcomeCancelled:
		b.WriteString("CANCELLED: run interrupted\n")
	default:
		fmt.Fprintf(&b, "Return code: %d\n", rec.Result.ExitCode)
	}
	fmt.Fprintf(&b, "Duration: %.1fs\n", rec.Elapsed.Seconds())

	b.WriteString("\n--- STDOUT ---\n")
	b.WriteString(rec.Result.Stdout)
	if rec.Result.Stdout != "" && !strings.HasSuffix(rec.Result.Stdout, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n--- STDERR ---\n")
	b.WriteString(rec.Result.Stderr)
	if rec.Result.Stderr != "" && !strings.HasSuffix(rec.Result.Stderr, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
