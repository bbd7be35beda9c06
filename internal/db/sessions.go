package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cafesense/occupancy.report/internal/vision"
)

// Run is one analysis pass over a detection feed.
type Run struct {
	RunID           string     `json:"run_id"`
	Source          string     `json:"source"`
	FPS             float64    `json:"fps"`
	FrameWidth      int        `json:"frame_width"`
	FrameHeight     int        `json:"frame_height"`
	FramesProcessed int        `json:"frames_processed"`
	VideoSeconds    float64    `json:"video_seconds"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// CreateRun inserts a new run row and returns its generated id.
func (db *DB) CreateRun(source string, fps float64, frameWidth, frameHeight int) (string, error) {
	runID := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, source, fps, frame_width, frame_height) VALUES (?, ?, ?, ?, ?)`,
		runID, source, fps, frameWidth, frameHeight,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return runID, nil
}

// FinishRun stamps the run's final frame counts and completion time.
func (db *DB) FinishRun(runID string, framesProcessed int, videoSeconds float64) error {
	res, err := db.Exec(
		`UPDATE runs SET frames_processed = ?, video_seconds = ?, finished_at = CURRENT_TIMESTAMP WHERE run_id = ?`,
		framesProcessed, videoSeconds, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// SessionRow is one persisted confirmed occupancy session.
type SessionRow struct {
	SessionID       int64   `json:"session_id"`
	RunID           string  `json:"run_id"`
	IdentityID      int64   `json:"identity_id"`
	TableName       string  `json:"table_name"`
	EntrySeconds    float64 `json:"entry_seconds"`
	ExitSeconds     float64 `json:"exit_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RecordSession appends one confirmed session to the persistent log.
func (db *DB) RecordSession(runID string, rec vision.SessionRecord) error {
	_, err := db.Exec(
		`INSERT INTO table_sessions (run_id, identity_id, table_name, entry_seconds, exit_seconds, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, rec.IdentityID, rec.Table, rec.EntryTime, rec.ExitTime, rec.Duration(),
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// RecordIdentitySummary upserts one identity's appearance summary.
func (db *DB) RecordIdentitySummary(runID string, sum *vision.IdentitySummary) error {
	var tableSeconds float64
	for _, secs := range sum.TableSeconds {
		tableSeconds += secs
	}
	_, err := db.Exec(
		`INSERT INTO identity_summaries (run_id, identity_id, first_seen, last_seen, total_seconds, table_seconds)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, identity_id) DO UPDATE SET
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			total_seconds = excluded.total_seconds,
			table_seconds = excluded.table_seconds`,
		runID, sum.ID, sum.FirstSeen, sum.LastSeen, sum.TotalSeconds(), tableSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record identity summary: %w", err)
	}
	return nil
}

// SessionsForRun returns the run's confirmed sessions in entry order.
func (db *DB) SessionsForRun(runID string) ([]SessionRow, error) {
	rows, err := db.Query(
		`SELECT session_id, run_id, identity_id, table_name, entry_seconds, exit_seconds, duration_seconds
		 FROM table_sessions WHERE run_id = ? ORDER BY entry_seconds, identity_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.SessionID, &s.RunID, &s.IdentityID, &s.TableName,
			&s.EntrySeconds, &s.ExitSeconds, &s.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentSessions returns the newest sessions across all runs, newest first.
func (db *DB) RecentSessions(limit int) ([]SessionRow, error) {
	rows, err := db.Query(
		`SELECT session_id, run_id, identity_id, table_name, entry_seconds, exit_seconds, duration_seconds
		 FROM table_sessions ORDER BY session_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.SessionID, &s.RunID, &s.IdentityID, &s.TableName,
			&s.EntrySeconds, &s.ExitSeconds, &s.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TableTotal is the aggregate confirmed occupancy for one table in a run.
type TableTotal struct {
	TableName    string  `json:"table_name"`
	TotalSeconds float64 `json:"total_seconds"`
	SessionCount int     `json:"session_count"`
}

// TableTotals aggregates the run's sessions per table, busiest first.
func (db *DB) TableTotals(runID string) ([]TableTotal, error) {
	rows, err := db.Query(
		`SELECT table_name, SUM(duration_seconds), COUNT(*)
		 FROM table_sessions WHERE run_id = ?
		 GROUP BY table_name ORDER BY SUM(duration_seconds) DESC, table_name`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query table totals: %w", err)
	}
	defer rows.Close()

	var out []TableTotal
	for rows.Next() {
		var t TableTotal
		if err := rows.Scan(&t.TableName, &t.TotalSeconds, &t.SessionCount); err != nil {
			return nil, fmt.Errorf("failed to scan table total: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
