package tui

import tea "github.com/charmbracelet/bubbletea"

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		case "l":
			m.ShowLogs = !m.ShowLogs
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case TickMsg:
		return m, tickCmd()

	case DoneMsg:
		m.Done = true
		return m, tea.Quit

	case RunStartedMsg:
		m.TotalTargets = msg.Targets
		if msg.Concurrency > 0 {
			m.Concurrency = msg.Concurrency
		}
		m.MaxAttempts = msg.MaxAttempts
		if msg.Provider != "" {
			m.Provider = msg.Provider
		}

	case StageMsg:
		m.Stage = StageState{Name: msg.Name, Status: msg.Status}

	case TargetAdmittedMsg:
		// fan-out has begun, the stage line is no longer relevant
		m.Stage = StageState{}
		m.Active[msg.Name] = &TargetState{
			Name:        msg.Name,
			Address:     msg.Address,
			Group:       msg.Group,
			MaxAttempts: m.MaxAttempts,
			Phase:       PhaseAdmitted,
			PhaseIcon:   IconWaiting,
			Since:       m.now(),
		}

	case AttemptStartedMsg:
		m.Attempts++
		if t, ok := m.Active[msg.Name]; ok {
			t.Attempt = msg.Attempt
			if msg.MaxAttempts > 0 {
				t.MaxAttempts = msg.MaxAttempts
			}
			t.Phase = PhaseRunning
			t.PhaseIcon = IconActive
			t.Since = m.now()
		}

	case BackoffMsg:
		if t, ok := m.Active[msg.Name]; ok {
			t.Phase = PhaseBackoff
			t.PhaseIcon = IconBackoff
			t.Since = m.now()
		}

	case TargetDoneMsg:
		delete(m.Active, msg.Name)
		m.Finished[msg.Status]++

	case LogMsg:
		m.appendLog(msg.Line)
	}

	return m, nil
}

func (m *Model) appendLog(line string) {
	m.LogLines = append(m.LogLines, line)
	if m.LogLimit > 0 && len(m.LogLines) > m.LogLimit {
		m.LogLines = m.LogLines[len(m.LogLines)-m.LogLimit:]
	}
}
