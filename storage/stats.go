package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date      string `json:"date"`
	Runs      int    `json:"runs"`
	Executed  int    `json:"executed"`
	Failed    int    `json:"failed"`
	Completed int    `json:"completed"`
}

// MacroStats represents statistics grouped by macro
type MacroStats struct {
	Macro         string  `json:"macro"`
	Runs          int     `json:"runs"`
	Executed      int     `json:"executed"`
	Failed        int     `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// OverallStats represents overall statistics
type OverallStats struct {
	TotalRuns       int     `json:"total_runs"`
	TotalExecuted   int     `json:"total_executed"`
	TotalFailed     int     `json:"total_failed"`
	CompletedCount  int     `json:"completed_count"`
	StoppedCount    int     `json:"stopped_count"`
	HotkeyCount     int     `json:"hotkey_count"`
	ErrorCount      int     `json:"error_count"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
	TotalDurationMs int64   `json:"total_duration_ms"`
}

func since(days int) int64 {
	return time.Now().AddDate(0, 0, -days).UnixMilli()
}

// GetDailyStats retrieves statistics grouped by local date for the last N days
func (db *DB) GetDailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(started_at / 1000, 'unixepoch', 'localtime') as date,
			COUNT(*) as runs,
			COALESCE(SUM(executed), 0) as executed,
			COALESCE(SUM(failed), 0) as failed,
			SUM(CASE WHEN reason = 'completed' THEN 1 ELSE 0 END) as completed
		FROM runs
		WHERE started_at >= ?
		GROUP BY date
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, since(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	stats := []DailyStats{}
	for rows.Next() {
		var s DailyStats
		err := rows.Scan(&s.Date, &s.Runs, &s.Executed, &s.Failed, &s.Completed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetMacroStats retrieves statistics grouped by macro for the last N days
func (db *DB) GetMacroStats(days int) ([]MacroStats, error) {
	query := `
		SELECT
			macro,
			COUNT(*) as runs,
			COALESCE(SUM(executed), 0) as executed,
			COALESCE(SUM(failed), 0) as failed,
			COALESCE(AVG(finished_at - started_at), 0) as avg_duration_ms
		FROM runs
		WHERE started_at >= ?
		GROUP BY macro
		ORDER BY runs DESC
	`

	rows, err := db.conn.Query(query, since(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query macro stats: %w", err)
	}
	defer rows.Close()

	stats := []MacroStats{}
	for rows.Next() {
		var s MacroStats
		err := rows.Scan(&s.Macro, &s.Runs, &s.Executed, &s.Failed, &s.AvgDurationMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan macro stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetOverallStats retrieves overall statistics for the last N days
func (db *DB) GetOverallStats(days int) (*OverallStats, error) {
	return db.overall(`WHERE started_at >= ?`, since(days))
}

// GetStatsForDateRange retrieves overall stats for a custom time range
func (db *DB) GetStatsForDateRange(startTime, endTime time.Time) (*OverallStats, error) {
	return db.overall(`WHERE started_at >= ? AND started_at <= ?`, startTime.UnixMilli(), endTime.UnixMilli())
}

func (db *DB) overall(where string, args ...any) (*OverallStats, error) {
	query := `
		SELECT
			COUNT(*) as total_runs,
			COALESCE(SUM(executed), 0) as total_executed,
			COALESCE(SUM(failed), 0) as total_failed,
			COALESCE(SUM(CASE WHEN reason = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason = 'stopped' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason = 'hotkey' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(finished_at - started_at), 0) as avg_duration_ms,
			COALESCE(SUM(finished_at - started_at), 0) as total_duration_ms
		FROM runs
	` + where

	var stats OverallStats
	err := db.conn.QueryRow(query, args...).Scan(
		&stats.TotalRuns,
		&stats.TotalExecuted,
		&stats.TotalFailed,
		&stats.CompletedCount,
		&stats.StoppedCount,
		&stats.HotkeyCount,
		&stats.ErrorCount,
		&stats.AvgDurationMs,
		&stats.TotalDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	return &stats, nil
}
