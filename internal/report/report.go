// Package report turns the final target ledger into the run summary.
package report

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// PreviewLength is the maximum length of the error preview in a failure entry
const PreviewLength = 100

// Failure is the digest entry for one non-success target
type Failure struct {
	Name     string
	Address  string
	Group    int
	Status   target.Status
	Attempts int
	Duration time.Duration

	// Started is false for targets that never got an admission slot
	Started bool

	// ErrorPreview is the first non-empty line of the last attempt's stderr
	ErrorPreview string
	LogFile      string
}

// Summary aggregates a finished run
type Summary struct {
	Total   int
	Success int
	Failed  int
	Timeout int
	Error   int

	// Incomplete counts targets not in a terminal state; always zero after
	// the scheduler's join
	Incomplete int

	TotalAttempts int

	// Retried counts targets that needed more than one attempt
	Retried int

	Duration time.Duration
	LogDir   string
	RunLog   string

	Failures []Failure
}

// Summarize computes the summary of a finished run. Targets that never
// started (nil timestamps) are tolerated and report a zero duration.
func Summarize(targets []target.Target, elapsed time.Duration) Summary {
	s := Summary{Total: len(targets), Duration: elapsed}

	for _, t := range targets {
		s.TotalAttempts += t.Attempts
		if t.Attempts > 1 {
			s.Retried++
		}

		switch t.Status {
		case target.StatusSuccess:
			s.Success++
			continue
		case target.StatusFailed:
			s.Failed++
		case target.StatusTimeout:
			s.Timeout++
		case target.StatusError:
			s.Error++
		default:
			s.Incomplete++
		}

		s.Failures = append(s.Failures, Failure{
			Name:         t.Name,
			Address:      t.Address,
			Group:        t.GroupID,
			Status:       t.Status,
			Attempts:     t.Attempts,
			Duration:     t.Duration(),
			Started:      t.StartedAt != nil,
			ErrorPreview: ErrorPreview(t.StderrLines),
			LogFile:      t.LogFile,
		})
	}
	return s
}

// Exhaustive reports whether every target is counted in exactly one
// terminal bucket
func (s Summary) Exhaustive() bool {
	return s.Incomplete == 0 && s.Success+s.Failed+s.Timeout+s.Error == s.Total
}

// Counts returns the terminal counts keyed by status
func (s Summary) Counts() map[target.Status]int {
	return map[target.Status]int{
		target.StatusSuccess: s.Success,
		target.StatusFailed:  s.Failed,
		target.StatusTimeout: s.Timeout,
		target.StatusError:   s.Error,
	}
}

// ErrorPreview returns the first non-empty line, truncated to PreviewLength
func ErrorPreview(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			return Truncate(line, PreviewLength)
		}
	}
	return ""
}

// Truncate shortens s to at most n runes, marking the cut with "..."
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
