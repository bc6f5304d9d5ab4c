package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashlens/internal/models"
)

const jobColumns = `id, job_type, payload, status, progress, result, attempts, max_attempts, created_at, started_at, completed_at`

// EnqueueJob queues a job of the given type. maxAttempts <= 0 keeps the table default.
func (db *DB) EnqueueJob(jobType string, payload any, maxAttempts int) (int64, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var result sql.Result
	if maxAttempts > 0 {
		result, err = db.Exec(`
			INSERT INTO jobs (job_type, payload, max_attempts)
			VALUES (?, ?, ?)
		`, jobType, string(payloadJSON), maxAttempts)
	} else {
		result, err = db.Exec(`
			INSERT INTO jobs (job_type, payload)
			VALUES (?, ?)
		`, jobType, string(payloadJSON))
	}
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	return result.LastInsertId()
}

// ClaimNextJob atomically claims the oldest pending job. Returns nil when the queue is empty.
func (db *DB) ClaimNextJob() (*models.Job, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRow(`
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := tx.Exec(`
		UPDATE jobs
		SET status = 'running', started_at = ?, attempts = attempts + 1
		WHERE id = ? AND status = 'pending'
	`, now, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	job.Status = "running"
	job.StartedAt = &now
	job.Attempts++
	return job, nil
}

// GetJob returns a job by ID
func (db *DB) GetJob(id int64) (*models.Job, error) {
	job, err := scanJob(db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// UpdateJobProgress updates the progress percentage of a running job
func (db *DB) UpdateJobProgress(id int64, progress int) error {
	if _, err := db.Exec(`UPDATE jobs SET progress = ? WHERE id = ?`, progress, id); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob marks a job as completed with an optional result
func (db *DB) CompleteJob(id int64, result string) error {
	_, err := db.Exec(`
		UPDATE jobs
		SET status = 'completed', progress = 100, result = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, result, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a job as failed with an error message
func (db *DB) FailJob(id int64, errMsg string) error {
	_, err := db.Exec(`
		UPDATE jobs
		SET status = 'failed', result = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, errMsg, id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// RetryJob resets a job to pending status for retry
func (db *DB) RetryJob(id int64) error {
	_, err := db.Exec(`
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return nil
}

// RequeueStaleJobs puts jobs left running by a previous process back in the
// queue, or fails them when they have no attempts left.
func (db *DB) RequeueStaleJobs() (int64, error) {
	_, err := db.Exec(`
		UPDATE jobs
		SET status = 'failed', result = 'interrupted', completed_at = CURRENT_TIMESTAMP
		WHERE status = 'running' AND attempts >= max_attempts
	`)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	res, err := db.Exec(`
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE status = 'running'
	`)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.Progress, &job.Result,
		&job.Attempts, &job.MaxAttempts, &job.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}
