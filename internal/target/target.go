// Package target holds the deployment targets of a run and the run-scoped
// ledger that serializes every change to their status.
package target

import (
	"fmt"
	"time"
)

// Target is one remote deployment unit
type Target struct {
	// Name is the unique, stable identifier from the inventory
	Name string

	// Address is the network endpoint the remote job connects to
	Address string

	// GroupID orders and groups targets (the inventory's network_id); not unique
	GroupID int

	Status   Status
	Attempts int

	StartedAt *time.Time
	EndedAt   *time.Time

	// StdoutLines and StderrLines hold the output of the most recent attempt
	StdoutLines []string
	StderrLines []string

	// LogFile accumulates every attempt for this target
	LogFile string
}

// New creates a pending target
func New(name, address string, groupID int) Target {
	return Target{
		Name:    name,
		Address: address,
		GroupID: groupID,
		Status:  StatusPending,
	}
}

// Duration returns EndedAt - StartedAt, or zero when either is unset
func (t Target) Duration() time.Duration {
	if t.StartedAt == nil || t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(*t.StartedAt)
}

// Clone returns a deep copy safe to hand out of the ledger
func (t Target) Clone() Target {
	c := t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.EndedAt != nil {
		ended := *t.EndedAt
		c.EndedAt = &ended
	}
	c.StdoutLines = append([]string(nil), t.StdoutLines...)
	c.StderrLines = append([]string(nil), t.StderrLines...)
	return c
}

// String returns "name (address)"
func (t Target) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Address)
}
