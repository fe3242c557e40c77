package storage

import (
	"database/sql"
	"fmt"
	"time"

	"dojotap/internal/models"
	"dojotap/internal/shared"
)

// SQLiteStore implements [Store] over the slots table created by the shared
// migrations, and additionally records successful submissions for the local
// history view.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database connection. The caller is expected to
// have run migrations (see shared.RunMigrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM slots WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.Exec("DELETE FROM slots WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove slot %s: %w", key, err)
	}
	return nil
}

// RecordSubmission appends a successful progress submission to local history.
func (s *SQLiteStore) RecordSubmission(req models.SubmitProgressRequest, newCount int) error {
	_, err := s.db.Exec(`
		INSERT INTO submissions (id, task_id, count_increment, minutes_spent, new_count, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, shared.GenerateID(), req.TaskID, req.CountIncrement, req.MinutesSpent, newCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// LocalSubmission is a locally recorded successful submission.
type LocalSubmission struct {
	ID             string
	TaskID         string
	CountIncrement int
	MinutesSpent   int
	NewCount       int
	SubmittedAt    time.Time
}

// RecentSubmissions returns up to limit submissions for a task, newest first.
// An empty taskID returns submissions across all tasks.
func (s *SQLiteStore) RecentSubmissions(taskID string, limit int) ([]LocalSubmission, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, task_id, count_increment, minutes_spent, new_count, submitted_at
		FROM submissions
	`
	args := []any{}
	if taskID != "" {
		query += " WHERE task_id = ?"
		args = append(args, taskID)
	}
	query += " ORDER BY submitted_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []LocalSubmission
	for rows.Next() {
		var sub LocalSubmission
		if err := rows.Scan(&sub.ID, &sub.TaskID, &sub.CountIncrement, &sub.MinutesSpent, &sub.NewCount, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, sub)
	}

	return out, rows.Err()
}
