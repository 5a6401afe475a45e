package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// defaultLogRows is the log pane height when the window size is unknown
const defaultLogRows = 10

// View implements tea.Model
func (m *Model) View() string {
	if m.Done || m.Quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.Stage.Name != "" {
		b.WriteString(m.Styles.Stage.Render(fmt.Sprintf("  Stage %s: %s", m.Stage.Name, m.Stage.Status)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderActiveTargets())
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")

	if m.ShowLogs {
		b.WriteString(m.renderLogs())
	}

	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title line with timer, provider and concurrency
func (m *Model) renderHeader() string {
	elapsed := m.now().Sub(m.StartTime).Round(time.Second)
	timer := fmt.Sprintf("[%s]", formatDuration(elapsed))
	info := fmt.Sprintf("Provider: %s  Concurrency: %d", m.Provider, m.Concurrency)

	return fmt.Sprintf("%s  %s  %s",
		m.Styles.Title.Render("GOAD Deploy"),
		m.Styles.Timer.Render(timer),
		m.Styles.Info.Render(info),
	)
}

// renderActiveTargets renders one line per admitted target, by group then name
func (m *Model) renderActiveTargets() string {
	if len(m.Active) == 0 {
		return "  No active targets\n\n"
	}

	active := make([]*TargetState, 0, len(m.Active))
	for _, t := range m.Active {
		active = append(active, t)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Group != active[j].Group {
			return active[i].Group < active[j].Group
		}
		return active[i].Name < active[j].Name
	})

	var b strings.Builder
	for _, t := range active {
		b.WriteString(m.renderTarget(t))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// renderTarget renders: ● [  3] dc01 (10.3.1.5)  attempt 1/3  running 00:02:11
func (m *Model) renderTarget(t *TargetState) string {
	style := m.Styles.TargetRunning
	if t.Phase == PhaseBackoff {
		style = m.Styles.TargetBackoff
	}

	attempt := "-"
	if t.Attempt > 0 {
		attempt = fmt.Sprintf("%d/%d", t.Attempt, t.MaxAttempts)
	}
	phase := fmt.Sprintf("%s %s", t.Phase, formatDuration(m.now().Sub(t.Since).Round(time.Second)))

	return fmt.Sprintf("  %s %s %s %s  attempt %s  %s",
		style.Render(t.PhaseIcon),
		m.Styles.TargetGroup.Render(fmt.Sprintf("[%3d]", t.Group)),
		m.Styles.TargetName.Render(t.Name),
		m.Styles.TargetGroup.Render("("+t.Address+")"),
		attempt,
		m.Styles.PhaseText.Render(phase),
	)
}

// renderStatusLine renders the terminal counts
func (m *Model) renderStatusLine() string {
	parts := make([]string, 0, len(target.TerminalStatuses)+2)
	for _, status := range target.TerminalStatuses {
		parts = append(parts, m.Styles.statusStyle(status).Render(fmt.Sprintf("%d %s", m.Finished[status], status)))
	}
	parts = append(parts,
		m.Styles.StatusActive.Render(fmt.Sprintf("%d active", len(m.Active))),
		fmt.Sprintf("%d waiting", m.Waiting()),
	)

	return fmt.Sprintf("  Targets: %d/%d %s  Attempts: %d",
		m.FinishedCount(),
		m.TotalTargets,
		strings.Join(parts, " | "),
		m.Attempts,
	)
}

// renderLogs renders the tail of the log pane
func (m *Model) renderLogs() string {
	rows := defaultLogRows
	if m.Height > 0 {
		// leave room for header, status and one line per active target
		rows = max(m.Height-len(m.Active)-10, 3)
	}

	lines := m.LogLines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}

	var b strings.Builder
	b.WriteString(m.Styles.LogTitle.Render("  ── Log ──"))
	b.WriteString("\n")
	for _, line := range lines {
		if m.Width > 4 && len(line) > m.Width-4 {
			line = line[:m.Width-4]
		}
		b.WriteString("  ")
		b.WriteString(m.Styles.LogLine.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFooter renders the help text
func (m *Model) renderFooter() string {
	q := m.Styles.FooterKey.Render("q")
	l := m.Styles.FooterKey.Render("l")
	return m.Styles.Footer.Render(fmt.Sprintf("  Press %s to stop the run, %s to toggle logs", q, l))
}

// formatDuration formats a duration as HH:MM:SS
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
