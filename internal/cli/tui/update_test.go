package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

func fixedModel() *Model {
	m := NewModel(2, "proxmox")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.StartTime = start
	m.now = func() time.Time { return start.Add(75 * time.Second) }
	return m
}

func TestUpdate_TargetLifecycle(t *testing.T) {
	m := fixedModel()

	m.Update(RunStartedMsg{Targets: 3, Concurrency: 2, MaxAttempts: 3, Provider: "vmware"})
	assert.Equal(t, 3, m.TotalTargets)
	assert.Equal(t, "vmware", m.Provider)
	assert.Equal(t, 3, m.Waiting())

	m.Update(StageMsg{Name: "prepare", Status: "running"})
	assert.Equal(t, "prepare", m.Stage.Name)

	m.Update(TargetAdmittedMsg{Name: "box1", Address: "10.1.1.5", Group: 1})
	assert.Empty(t, m.Stage.Name, "admission clears the stage line")
	require.Contains(t, m.Active, "box1")
	assert.Equal(t, PhaseAdmitted, m.Active["box1"].Phase)

	m.Update(AttemptStartedMsg{Name: "box1", Attempt: 1, MaxAttempts: 3})
	assert.Equal(t, PhaseRunning, m.Active["box1"].Phase)
	assert.Equal(t, 1, m.Active["box1"].Attempt)

	m.Update(BackoffMsg{Name: "box1", Attempt: 1, Kind: "failure"})
	assert.Equal(t, PhaseBackoff, m.Active["box1"].Phase)

	m.Update(AttemptStartedMsg{Name: "box1", Attempt: 2, MaxAttempts: 3})
	m.Update(TargetDoneMsg{Name: "box1", Status: target.StatusSuccess})
	assert.NotContains(t, m.Active, "box1")
	assert.Equal(t, 1, m.Finished[target.StatusSuccess])
	assert.Equal(t, 2, m.Attempts)
	assert.Equal(t, 2, m.Waiting())
}

func TestUpdate_ErrorBeforeAdmission(t *testing.T) {
	m := fixedModel()
	m.Update(RunStartedMsg{Targets: 2})

	m.Update(TargetDoneMsg{Name: "box2", Status: target.StatusError})

	assert.Equal(t, 1, m.Finished[target.StatusError])
	assert.Equal(t, 1, m.Waiting())
}

func TestUpdate_Quit(t *testing.T) {
	m := fixedModel()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.True(t, m.Quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestUpdate_ToggleLogs(t *testing.T) {
	m := fixedModel()
	require.True(t, m.ShowLogs)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})

	assert.False(t, m.ShowLogs)
}

func TestUpdate_Done(t *testing.T) {
	m := fixedModel()

	_, cmd := m.Update(DoneMsg{})

	assert.True(t, m.Done)
	require.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestUpdate_LogLimit(t *testing.T) {
	m := fixedModel()
	m.LogLimit = 3

	for _, line := range []string{"a", "b", "c", "d", "e"} {
		m.Update(LogMsg{Line: line})
	}

	assert.Equal(t, []string{"c", "d", "e"}, m.LogLines)
}
