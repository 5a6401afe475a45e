package target

// Status represents a target's lifecycle state within one run
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusRetrying Status = "retrying"
	StatusSuccess  Status = "success" // Terminal: remote job exited 0
	StatusFailed   Status = "failed"  // Terminal: every attempt exited non-zero
	StatusTimeout  Status = "timeout" // Terminal: the last attempt never returned
	StatusError    Status = "error"   // Terminal: runner could not be invoked, or the run was cancelled
)

// TerminalStatuses lists the terminal states in report order
var TerminalStatuses = []Status{StatusSuccess, StatusFailed, StatusTimeout, StatusError}

// ValidTransitions defines allowed state transitions.
// pending -> error and retrying -> error cover cancellation while waiting
// for an admission slot or sleeping between attempts.
var ValidTransitions = map[Status][]Status{
	StatusPending:  {StatusRunning, StatusError},
	StatusRunning:  {StatusSuccess, StatusRetrying, StatusFailed, StatusTimeout, StatusError},
	StatusRetrying: {StatusRunning, StatusError},
	StatusSuccess:  {},
	StatusFailed:   {},
	StatusTimeout:  {},
	StatusError:    {},
}

// IsTerminal returns true if the status is a final state
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusTimeout || s == StatusError
}

// IsActive returns true if a target in this state holds an admission slot
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusRetrying
}

// CanTransition checks if a transition from -> to is valid
func CanTransition(from, to Status) bool {
	validTargets, exists := ValidTransitions[from]
	if !exists {
		return false
	}
	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}
