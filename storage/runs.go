package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run id does not exist
var ErrNotFound = errors.New("run not found")

// Run is the record of one macro playback
type Run struct {
	ID         string    `json:"id"`
	Macro      string    `json:"macro"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	LoopCount  int       `json:"loop_count"`
	Iterations int       `json:"iterations"`
	Executed   int       `json:"executed"`
	Failed     int       `json:"failed"`
	Reason     string    `json:"reason"`
}

// Duration is the wall time of the run
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveRun inserts or replaces a run record
func (db *DB) SaveRun(r *Run) error {
	if r.ID == "" {
		return fmt.Errorf("run has no id")
	}

	query := `
		INSERT OR REPLACE INTO runs (
			id, macro, started_at, finished_at,
			loop_count, iterations, executed, failed, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.Exec(query,
		r.ID, r.Macro, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.LoopCount, r.Iterations, r.Executed, r.Failed, r.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, macro, started_at, finished_at, loop_count, iterations, executed, failed, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var started, finished int64
	err := s.Scan(
		&r.ID, &r.Macro, &started, &finished,
		&r.LoopCount, &r.Iterations, &r.Executed, &r.Failed, &r.Reason,
	)
	if err != nil {
		return r, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	return r, nil
}

// GetRuns retrieves runs, newest first, with pagination
func (db *DB) GetRuns(limit, offset int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetRun retrieves a single run
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return &r, nil
}

// DeleteRun deletes a run by id
func (db *DB) DeleteRun(id string) error {
	result, err := db.conn.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetRunCount returns the total number of runs
func (db *DB) GetRunCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}
