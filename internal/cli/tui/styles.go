package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// Styles contains all lipgloss styles for the TUI
type Styles struct {
	// Header styling
	Title lipgloss.Style
	Timer lipgloss.Style
	Info  lipgloss.Style
	Stage lipgloss.Style

	// Target styling
	TargetRunning lipgloss.Style
	TargetBackoff lipgloss.Style
	TargetName    lipgloss.Style
	TargetGroup   lipgloss.Style
	PhaseText     lipgloss.Style

	// Footer styling
	Footer    lipgloss.Style
	FooterKey lipgloss.Style

	// Status counts
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusTimeout lipgloss.Style
	StatusError   lipgloss.Style
	StatusActive  lipgloss.Style

	// Log area styling
	LogTitle lipgloss.Style
	LogLine  lipgloss.Style
}

// DefaultStyles returns the default TUI styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Timer: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Info:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Stage: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true),

		TargetRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		TargetBackoff: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		TargetName:    lipgloss.NewStyle().Bold(true),
		TargetGroup:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		PhaseText:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true),

		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1),
		FooterKey: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),

		StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StatusTimeout: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		StatusActive:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),

		LogTitle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Bold(true),
		LogLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// statusStyle returns the style for a terminal status count
func (s Styles) statusStyle(status target.Status) lipgloss.Style {
	switch status {
	case target.StatusSuccess:
		return s.StatusSuccess
	case target.StatusFailed:
		return s.StatusFailed
	case target.StatusTimeout:
		return s.StatusTimeout
	default:
		return s.StatusError
	}
}

// Icons used in the TUI
const (
	IconActive   = "●"
	IconComplete = "✓"
	IconFailed   = "✗"
	IconBackoff  = "↻"
	IconWaiting  = "⏳"
)
