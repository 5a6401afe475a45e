package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// Phases shown for an admitted target
const (
	PhaseAdmitted = "admitted"
	PhaseRunning  = "running"
	PhaseBackoff  = "backoff"
)

// TargetState tracks one admitted target in the TUI
type TargetState struct {
	Name        string
	Address     string
	Group       int
	Attempt     int
	MaxAttempts int
	Phase       string
	PhaseIcon   string

	// Since is when the current phase began
	Since time.Time
}

// StageState tracks the preparation stage currently shown in the header
type StageState struct {
	Name   string
	Status string
}

// Model is the bubbletea model for the TUI
type Model struct {
	// Configuration
	TotalTargets int
	Concurrency  int
	MaxAttempts  int
	Provider     string
	Styles       Styles

	// State
	Active   map[string]*TargetState
	Finished map[target.Status]int
	Stage    StageState
	Attempts int

	StartTime time.Time
	LogLines  []string
	LogLimit  int
	ShowLogs  bool
	Width     int
	Height    int

	// Control
	Quitting bool
	Done     bool

	now func() time.Time
}

// NewModel creates a new TUI model
func NewModel(concurrency int, provider string) *Model {
	return &Model{
		Concurrency: concurrency,
		Provider:    provider,
		Styles:      DefaultStyles(),
		Active:      make(map[string]*TargetState),
		Finished:    make(map[target.Status]int),
		StartTime:   time.Now(),
		LogLimit:    500,
		ShowLogs:    true,
		now:         time.Now,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

// FinishedCount returns the number of targets in a terminal state
func (m *Model) FinishedCount() int {
	n := 0
	for _, c := range m.Finished {
		n += c
	}
	return n
}

// Waiting returns the number of targets not yet admitted
func (m *Model) Waiting() int {
	return max(m.TotalTargets-m.FinishedCount()-len(m.Active), 0)
}

// TickMsg is sent every second to update the timer
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// DoneMsg signals the TUI should exit
type DoneMsg struct{}

// RunStartedMsg carries the run parameters
type RunStartedMsg struct {
	Targets     int
	Concurrency int
	MaxAttempts int
	Provider    string
}

// StageMsg reports a preparation stage changing state
type StageMsg struct {
	Name   string
	Status string
}

// TargetAdmittedMsg indicates a target acquired an admission slot
type TargetAdmittedMsg struct {
	Name    string
	Address string
	Group   int
}

// AttemptStartedMsg indicates a remote job was launched
type AttemptStartedMsg struct {
	Name        string
	Attempt     int
	MaxAttempts int
}

// BackoffMsg indicates a target is waiting before its next attempt
type BackoffMsg struct {
	Name    string
	Attempt int
	Kind    string
}

// TargetDoneMsg indicates a target reached a terminal state
type TargetDoneMsg struct {
	Name   string
	Status target.Status
}
