package history

import (
	"database/sql"
	"fmt"
	"time"
)

const runColumns = `
	id, status, provider, concurrency, max_attempts, started_at, ended_at,
	aborted_stage, total, success, failed, timeout, error, total_attempts, log_dir`

// RecordRun inserts a finished run and its targets in one transaction
func (db *DB) RecordRun(run RunRecord, targets []TargetRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Status,
		run.Provider,
		run.Concurrency,
		run.MaxAttempts,
		run.StartedAt.UTC(),
		run.EndedAt.UTC(),
		run.AbortedStage,
		run.Total,
		run.Success,
		run.Failed,
		run.Timeout,
		run.Error,
		run.TotalAttempts,
		run.LogDir,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO targets (
			run_id, name, address, group_id, status, attempts,
			duration_ms, error_preview, log_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare target insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range targets {
		if _, err := stmt.Exec(
			run.ID,
			t.Name,
			t.Address,
			t.GroupID,
			t.Status,
			t.Attempts,
			t.Duration.Milliseconds(),
			t.ErrorPreview,
			t.LogFile,
		); err != nil {
			return fmt.Errorf("failed to insert target %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its ID.
// Returns nil, nil if the run does not exist.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ListTargets returns the targets recorded for a run, ordered by group then name
func (db *DB) ListTargets(runID string) ([]TargetRecord, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, name, address, group_id, status, attempts,
		       duration_ms, error_preview, log_file
		FROM targets
		WHERE run_id = ?
		ORDER BY group_id, name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []TargetRecord
	for rows.Next() {
		var t TargetRecord
		var durationMS int64
		if err := rows.Scan(
			&t.RunID,
			&t.Name,
			&t.Address,
			&t.GroupID,
			&t.Status,
			&t.Attempts,
			&durationMS,
			&t.ErrorPreview,
			&t.LogFile,
		); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		t.Duration = time.Duration(durationMS) * time.Millisecond
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}
	return targets, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRecord, error) {
	run := &RunRecord{}
	err := s.Scan(
		&run.ID,
		&run.Status,
		&run.Provider,
		&run.Concurrency,
		&run.MaxAttempts,
		&run.StartedAt,
		&run.EndedAt,
		&run.AbortedStage,
		&run.Total,
		&run.Success,
		&run.Failed,
		&run.Timeout,
		&run.Error,
		&run.TotalAttempts,
		&run.LogDir,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
