package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/foundry/internal/model"

	_ "modernc.org/sqlite"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS training_jobs (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    version    TEXT NOT NULL,
    status     TEXT NOT NULL,
    config     TEXT NOT NULL,
    pid        INTEGER,
    log_path   TEXT,
    start_time DATETIME NOT NULL,
    end_time   DATETIME
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createJobsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create training_jobs table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new training job record.
func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.TrainingJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_jobs (
			id, name, version, status, config, pid, log_path, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Name, j.Version, j.Status, j.Config, j.PID, j.LogPath, j.StartTime, j.EndTime,
	)
	if err != nil {
		return fmt.Errorf("insert training job: %w", err)
	}
	return nil
}

// GetJob retrieves a training job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.TrainingJob, error) {
	j := &model.TrainingJob{}
	var logPath sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, version, status, config, pid, log_path, start_time, end_time
		FROM training_jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.Name, &j.Version, &j.Status, &j.Config, &j.PID, &logPath, &j.StartTime, &j.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get training job: %w", err)
	}
	j.LogPath = logPath.String
	return j, nil
}

// ListJobs returns all training jobs ordered by start_time DESC.
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]*model.TrainingJob, error) {
	return s.queryJobs(ctx,
		`SELECT id, name, version, status, config, pid, log_path, start_time, end_time
		FROM training_jobs ORDER BY start_time DESC`)
}

// ListJobsByStatus returns training jobs with the given status, ordered by start_time DESC.
func (s *SQLiteStore) ListJobsByStatus(ctx context.Context, status string) ([]*model.TrainingJob, error) {
	return s.queryJobs(ctx,
		`SELECT id, name, version, status, config, pid, log_path, start_time, end_time
		FROM training_jobs WHERE status = ? ORDER BY start_time DESC`, status)
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...any) ([]*model.TrainingJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list training jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.TrainingJob
	for rows.Next() {
		j := &model.TrainingJob{}
		var logPath sql.NullString
		if err := rows.Scan(&j.ID, &j.Name, &j.Version, &j.Status, &j.Config, &j.PID, &logPath, &j.StartTime, &j.EndTime); err != nil {
			return nil, fmt.Errorf("scan training job: %w", err)
		}
		j.LogPath = logPath.String
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training jobs: %w", err)
	}
	return jobs, nil
}

// SetJobProcess records the spawned process pid and log path for a job.
func (s *SQLiteStore) SetJobProcess(ctx context.Context, id string, pid int, logPath string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE training_jobs SET pid = ?, log_path = ? WHERE id = ?",
		pid, logPath, id,
	)
	if err != nil {
		return fmt.Errorf("set job process: %w", err)
	}
	return checkAffected(result)
}

// UpdateJobStatus updates the status of a job after validating the transition.
// Terminal statuses (completed, failed, stopped) also set end_time.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id, status string) error {
	current, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !model.ValidTransition(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	var result sql.Result
	if status == model.StatusCompleted || status == model.StatusFailed || status == model.StatusStopped {
		result, err = s.db.ExecContext(ctx,
			"UPDATE training_jobs SET status = ?, end_time = ? WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			"UPDATE training_jobs SET status = ? WHERE id = ?",
			status, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
