package history

import (
	"time"

	"github.com/cyberbalsa/gci-goad/internal/report"
	"github.com/cyberbalsa/gci-goad/internal/target"
)

// RunStatus is how a recorded run ended
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed" // every target reached a terminal state
	RunStatusAborted   RunStatus = "aborted"   // a critical stage failed before fan-out
	RunStatusCancelled RunStatus = "cancelled" // interrupted by signal
)

// RunRecord is one row of the runs table
type RunRecord struct {
	ID          string
	Status      RunStatus
	Provider    string
	Concurrency int
	MaxAttempts int
	StartedAt   time.Time
	EndedAt     time.Time

	// AbortedStage names the critical stage that stopped the run
	AbortedStage string

	Total         int
	Success       int
	Failed        int
	Timeout       int
	Error         int
	TotalAttempts int

	LogDir string
}

// Duration returns how long the run took
func (r RunRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TargetRecord is one row of the targets table
type TargetRecord struct {
	RunID        string
	Name         string
	Address      string
	GroupID      int
	Status       target.Status
	Attempts     int
	Duration     time.Duration
	ErrorPreview string
	LogFile      string
}

// WithSummary copies the summary counters onto the run record
func (r RunRecord) WithSummary(s report.Summary) RunRecord {
	r.Total = s.Total
	r.Success = s.Success
	r.Failed = s.Failed
	r.Timeout = s.Timeout
	r.Error = s.Error
	r.TotalAttempts = s.TotalAttempts
	r.LogDir = s.LogDir
	return r
}

// TargetRecords converts final ledger snapshots into history rows
func TargetRecords(runID string, targets []target.Target) []TargetRecord {
	out := make([]TargetRecord, 0, len(targets))
	for _, t := range targets {
		rec := TargetRecord{
			RunID:    runID,
			Name:     t.Name,
			Address:  t.Address,
			GroupID:  t.GroupID,
			Status:   t.Status,
			Attempts: t.Attempts,
			Duration: t.Duration(),
			LogFile:  t.LogFile,
		}
		if t.Status != target.StatusSuccess {
			rec.ErrorPreview = report.ErrorPreview(t.StderrLines)
		}
		out = append(out, rec)
	}
	return out
}
