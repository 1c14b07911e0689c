// Package history keeps a cross-run record of task outcomes in SQLite, so
// metrics survive state resets and reloads of the task set.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/foreman/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Outcome is one recorded task attempt.
type Outcome struct {
	ID              int64
	TargetDir       string
	TaskID          string
	TaskName        string
	Attempt         int
	Status          string
	FailureCategory string
	ErrorMessage    string
	DurationSecs    float64
	Verdict         string
	Recommendation  string
	RecordedAt      time.Time
}

// RunSummary is the rollup written when a run finishes.
type RunSummary struct {
	TargetDir    string
	TotalTasks   int
	Completed    int
	Failed       int
	Skipped      int
	TotalTokens  int
	TotalCostUSD float64
}

// Store manages the history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so the rest wait on locks instead of failing.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry retries lock errors with exponential backoff.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordOutcome appends one task attempt's outcome.
func (s *Store) RecordOutcome(ctx context.Context, o *Outcome) error {
	query := `INSERT INTO task_outcomes
		(target_dir, task_id, task_name, attempt, status, failure_category, error_message, duration_seconds, verdict, recommendation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		o.TargetDir, o.TaskID, o.TaskName, o.Attempt, o.Status,
		o.FailureCategory, o.ErrorMessage, o.DurationSecs, o.Verdict, o.Recommendation)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	o.ID, _ = res.LastInsertId()
	return nil
}

// RecordTask derives and stores the outcome row for a task's current record.
func (s *Store) RecordTask(ctx context.Context, targetDir string, task *models.Task) error {
	o := &Outcome{
		TargetDir:    targetDir,
		TaskID:       task.ID,
		TaskName:     task.Name,
		Attempt:      task.Attempts,
		Status:       string(task.Status),
		ErrorMessage: task.Error,
		DurationSecs: task.DurationSecs,
	}
	if task.Failure != nil {
		o.FailureCategory = string(task.Failure.Category)
	}
	if task.Verification != nil {
		o.Verdict = string(task.Verification.Verdict)
		o.Recommendation = string(task.Verification.Recommendation)
	}
	return s.RecordOutcome(ctx, o)
}

// RecordRun stores a finished run's rollup.
func (s *Store) RecordRun(ctx context.Context, sum *RunSummary) error {
	query := `INSERT INTO run_summaries
		(target_dir, total_tasks, completed, failed, skipped, total_tokens, total_cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		sum.TargetDir, sum.TotalTasks, sum.Completed, sum.Failed,
		sum.Skipped, sum.TotalTokens, sum.TotalCostUSD); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// TaskOutcomes returns the recorded attempts for one task, newest first.
func (s *Store) TaskOutcomes(ctx context.Context, targetDir, taskID string) ([]Outcome, error) {
	query := `SELECT id, target_dir, task_id, task_name, attempt, status,
		failure_category, error_message, duration_seconds, verdict, recommendation, recorded_at
		FROM task_outcomes WHERE target_dir = ? AND task_id = ?
		ORDER BY recorded_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, targetDir, taskID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.ID, &o.TargetDir, &o.TaskID, &o.TaskName, &o.Attempt,
			&o.Status, &o.FailureCategory, &o.ErrorMessage, &o.DurationSecs,
			&o.Verdict, &o.Recommendation, &o.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// FailureRates aggregates failure counts by category across all runs for a
// target. Feeds the metrics command.
func (s *Store) FailureRates(ctx context.Context, targetDir string) (map[string]int, error) {
	query := `SELECT failure_category, COUNT(*) FROM task_outcomes
		WHERE target_dir = ? AND status = 'failed' AND failure_category != ''
		GROUP BY failure_category`
	rows, err := s.db.QueryContext(ctx, query, targetDir)
	if err != nil {
		return nil, fmt.Errorf("query failure rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan failure rate: %w", err)
		}
		rates[category] = count
	}
	return rates, rows.Err()
}
