package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cyberbalsa/gci-goad/internal/events"
	"github.com/cyberbalsa/gci-goad/internal/target"
)

// Sender delivers messages to a running program; *tea.Program satisfies it
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge connects the event bus to the bubbletea program.
// It works from event contents only and never reads the ledger.
type Bridge struct {
	program Sender
}

// NewBridge creates a new bridge for the given program
func NewBridge(program Sender) *Bridge {
	return &Bridge{
		program: program,
	}
}

// Handler returns an event handler function for the event bus
func (b *Bridge) Handler() events.Handler {
	return func(evt events.Event) {
		msg := b.eventToMsg(evt)
		if msg != nil {
			b.program.Send(msg)
		}
	}
}

// eventToMsg converts an events.Event to a tea.Msg
func (b *Bridge) eventToMsg(evt events.Event) tea.Msg {
	switch evt.Type {
	case events.RunStarted:
		msg := RunStartedMsg{}
		if payload, ok := evt.Payload.(map[string]any); ok {
			msg.Targets, _ = payload["targets"].(int)
			msg.Concurrency, _ = payload["concurrency"].(int)
			msg.MaxAttempts, _ = payload["max_attempts"].(int)
			msg.Provider, _ = payload["provider"].(string)
		}
		return msg

	case events.StageStarted:
		return StageMsg{Name: evt.Stage, Status: "running"}
	case events.StageCompleted:
		return StageMsg{Name: evt.Stage, Status: "completed"}
	case events.StageFailed:
		return StageMsg{Name: evt.Stage, Status: "failed"}
	case events.StageSkipped:
		return StageMsg{Name: evt.Stage, Status: "skipped"}

	case events.TargetAdmitted:
		group := 0
		if evt.Group != nil {
			group = *evt.Group
		}
		return TargetAdmittedMsg{
			Name:    evt.Target,
			Address: evt.Address,
			Group:   group,
		}

	case events.AttemptStarted:
		return AttemptStartedMsg{
			Name:        evt.Target,
			Attempt:     evt.Attempt,
			MaxAttempts: evt.MaxAttempts,
		}

	case events.TargetRetrying:
		kind := ""
		if payload, ok := evt.Payload.(map[string]any); ok {
			if k, ok := payload["kind"].(string); ok {
				kind = k
			}
		}
		return BackoffMsg{
			Name:    evt.Target,
			Attempt: evt.Attempt,
			Kind:    kind,
		}

	case events.TargetSucceeded:
		return TargetDoneMsg{Name: evt.Target, Status: target.StatusSuccess}
	case events.TargetFailed:
		return TargetDoneMsg{Name: evt.Target, Status: target.StatusFailed}
	case events.TargetTimeout:
		return TargetDoneMsg{Name: evt.Target, Status: target.StatusTimeout}
	case events.TargetError:
		return TargetDoneMsg{Name: evt.Target, Status: target.StatusError}

	default:
		return nil
	}
}

// SendDone sends a DoneMsg to the program
func (b *Bridge) SendDone() {
	b.program.Send(DoneMsg{})
}
