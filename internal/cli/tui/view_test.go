package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

func TestView_RendersTargetsAndCounts(t *testing.T) {
	m := fixedModel()
	m.Update(RunStartedMsg{Targets: 4, Concurrency: 2, MaxAttempts: 3, Provider: "proxmox"})
	m.Update(TargetAdmittedMsg{Name: "dc01", Address: "10.3.1.5", Group: 3})
	m.Update(AttemptStartedMsg{Name: "dc01", Attempt: 2, MaxAttempts: 3})
	m.Update(TargetDoneMsg{Name: "box1", Status: target.StatusSuccess})
	m.Update(TargetDoneMsg{Name: "box2", Status: target.StatusTimeout})
	m.Update(LogMsg{Line: "[  3] Starting deployment on dc01 (10.3.1.5) - Attempt 2/3"})

	out := m.View()

	assert.Contains(t, out, "GOAD Deploy")
	assert.Contains(t, out, "[00:01:15]")
	assert.Contains(t, out, "Concurrency: 2")
	assert.Contains(t, out, "dc01")
	assert.Contains(t, out, "[  3]")
	assert.Contains(t, out, "attempt 2/3")
	assert.Contains(t, out, "Targets: 2/4")
	assert.Contains(t, out, "1 success")
	assert.Contains(t, out, "1 timeout")
	assert.Contains(t, out, "1 active")
	assert.Contains(t, out, "1 waiting")
	assert.Contains(t, out, "Starting deployment on dc01")
}

func TestView_NoActiveTargets(t *testing.T) {
	m := fixedModel()
	m.Update(StageMsg{Name: "prepare-kali-boxes", Status: "running"})

	out := m.View()

	assert.Contains(t, out, "No active targets")
	assert.Contains(t, out, "Stage prepare-kali-boxes: running")
}

func TestView_HidesLogs(t *testing.T) {
	m := fixedModel()
	m.Update(LogMsg{Line: "secret line"})
	m.ShowLogs = false

	assert.NotContains(t, m.View(), "secret line")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", formatDuration(0))
	assert.Equal(t, "01:02:03", formatDuration(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "00:00:00", formatDuration(-time.Second))
}
