package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

const ruleWidth = 60

// Styles controls summary rendering
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns colored styles for terminal output
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// PlainStyles returns styles that emit no escape sequences
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Label: plain, Success: plain, Failure: plain, Warning: plain, Muted: plain}
}

// Render writes the human-readable summary block
func Render(w io.Writer, s Summary, st Styles) error {
	var b strings.Builder
	rule := strings.Repeat("=", ruleWidth)

	b.WriteString(rule + "\n")
	b.WriteString(st.Title.Render("DEPLOYMENT SUMMARY") + "\n")
	b.WriteString(rule + "\n")

	row := func(label string, value string) {
		fmt.Fprintf(&b, "%s %s\n", st.Label.Render(fmt.Sprintf("%-20s", label+":")), value)
	}
	count := func(n int, style lipgloss.Style) string {
		if n == 0 {
			return fmt.Sprint(n)
		}
		return style.Render(fmt.Sprint(n))
	}

	row("Total instances", fmt.Sprint(s.Total))
	row("Successful", count(s.Success, st.Success))
	row("Failed", count(s.Failed, st.Failure))
	row("Timed out", count(s.Timeout, st.Warning))
	row("Errors", count(s.Error, st.Failure))
	if s.Incomplete > 0 {
		row("Incomplete", st.Warning.Render(fmt.Sprint(s.Incomplete)))
	}
	row("Retried instances", fmt.Sprint(s.Retried))
	row("Total attempts", fmt.Sprint(s.TotalAttempts))
	row("Total duration", fmt.Sprintf("%.1fs (%.1f min)", s.Duration.Seconds(), s.Duration.Minutes()))
	if s.LogDir != "" {
		row("Log directory", s.LogDir)
	}
	if s.RunLog != "" {
		row("Run log", s.RunLog)
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n" + st.Failure.Render("FAILED DEPLOYMENTS:") + "\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  %s %s (%s) [group %d] - %s after %d attempt(s), %s\n",
				st.Failure.Render("✗"), f.Name, f.Address, f.Group,
				statusText(f.Status), f.Attempts, formatDuration(f))
			if f.ErrorPreview != "" {
				fmt.Fprintf(&b, "      Error: %s\n", f.ErrorPreview)
			}
			if f.LogFile != "" {
				fmt.Fprintf(&b, "      Log:   %s\n", st.Muted.Render(f.LogFile))
			}
		}
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// LogSummary writes the plain summary to logger, one record per line
func LogSummary(logger *zap.Logger, s Summary) {
	var b strings.Builder
	_ = Render(&b, s, PlainStyles())
	for _, line := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
		logger.Info(line)
	}
}

func statusText(s target.Status) string {
	switch s {
	case target.StatusFailed:
		return "failed"
	case target.StatusTimeout:
		return "timed out"
	case target.StatusError:
		return "error"
	default:
		return string(s)
	}
}

func formatDuration(f Failure) string {
	if !f.Started {
		return "not started"
	}
	return fmt.Sprintf("%.1fs", f.Duration.Seconds())
}
