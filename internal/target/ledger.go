package target

import (
	"fmt"
	"sync"
	"time"
)

// TransitionError reports a status change the state machine does not allow
type TransitionError struct {
	Target string
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("target %s: invalid transition %s -> %s", e.Target, e.From, e.To)
}

// Ledger is the run-scoped status table. Its mutex is the single coarse
// lock of the run: status changes and any output that must stay ordered
// across targets happen while it is held.
type Ledger struct {
	mu      sync.Mutex
	targets []*Target
	index   map[string]*Target
	now     func() time.Time
}

// NewLedger creates a ledger over copies of the given targets, all pending.
// Target names must be unique.
func NewLedger(targets []Target) (*Ledger, error) {
	l := &Ledger{
		targets: make([]*Target, 0, len(targets)),
		index:   make(map[string]*Target, len(targets)),
		now:     time.Now,
	}
	for _, t := range targets {
		if t.Name == "" {
			return nil, fmt.Errorf("target with address %q has no name", t.Address)
		}
		if _, exists := l.index[t.Name]; exists {
			return nil, fmt.Errorf("duplicate target name %q", t.Name)
		}
		c := New(t.Name, t.Address, t.GroupID)
		l.targets = append(l.targets, &c)
		l.index[c.Name] = &c
	}
	return l, nil
}

// Len returns the number of targets
func (l *Ledger) Len() int {
	return len(l.targets)
}

// Transition moves a target to a new status and applies update while the
// ledger lock is held. Entering running stamps StartedAt on the first
// attempt only; entering a terminal status stamps EndedAt.
func (l *Ledger) Transition(name string, to Status, update func(*Target)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.index[name]
	if !ok {
		return fmt.Errorf("unknown target %q", name)
	}
	if !CanTransition(t.Status, to) {
		return &TransitionError{Target: name, From: t.Status, To: to}
	}

	now := l.now()
	t.Status = to
	if to == StatusRunning && t.StartedAt == nil {
		t.StartedAt = &now
	}
	if to.IsTerminal() {
		t.EndedAt = &now
	}
	if update != nil {
		update(t)
	}
	return nil
}

// Update mutates non-status fields of a target under the ledger lock
func (l *Ledger) Update(name string, update func(*Target)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.index[name]
	if !ok {
		return fmt.Errorf("unknown target %q", name)
	}
	update(t)
	return nil
}

// Get returns a copy of the named target
func (l *Ledger) Get(name string) (Target, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.index[name]
	if !ok {
		return Target{}, false
	}
	return t.Clone(), true
}

// Snapshot returns copies of all targets in inventory order
func (l *Ledger) Snapshot() []Target {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Target, len(l.targets))
	for i, t := range l.targets {
		out[i] = t.Clone()
	}
	return out
}

// Counts returns the number of targets in each status
func (l *Ledger) Counts() map[Status]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[Status]int)
	for _, t := range l.targets {
		counts[t.Status]++
	}
	return counts
}
