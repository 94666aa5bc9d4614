package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leads/postback/internal/domain"
)

// JobRunRepo keeps the history of daily jobs so that a job which already
// succeeded for a day is not repeated after a restart.
type JobRunRepo struct {
	db *sql.DB
}

func NewJobRunRepo(db *sql.DB) *JobRunRepo {
	return &JobRunRepo{db: db}
}

// Start records a running job and returns its id.
func (r *JobRunRepo) Start(ctx context.Context, job, day string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO job_runs (job, day, status, started_at) VALUES (?,?,?,?)`,
		job, day, string(domain.JobRunning), at.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job run: %w", err)
	}
	return res.LastInsertId()
}

// Finish stores the final status of a run.
func (r *JobRunRepo) Finish(ctx context.Context, id int64, status domain.JobStatus, detail string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, detail = ?, finished_at = ? WHERE id = ?`,
		string(status), detail, at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("update job run: %w", err)
	}
	return nil
}

// HasSucceeded reports whether job completed successfully for day.
func (r *JobRunRepo) HasSucceeded(ctx context.Context, job, day string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_runs WHERE job = ? AND day = ? AND status = ?`,
		job, day, string(domain.JobSucceeded),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query job run: %w", err)
	}
	return n > 0, nil
}

// List returns the most recent runs, optionally restricted to one job.
func (r *JobRunRepo) List(ctx context.Context, job string, limit int) ([]domain.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT id, job, day, status, detail, started_at, finished_at FROM job_runs`
	var args []any
	if job != "" {
		q += ` WHERE job = ?`
		args = append(args, job)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	runs := []domain.JobRun{}
	for rows.Next() {
		var run domain.JobRun
		var status, startedAt string
		var finishedAt sql.NullString

		if err := rows.Scan(&run.ID, &run.Job, &run.Day, &status, &run.Detail, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		run.Status = domain.JobStatus(status)
		run.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(timeLayout, finishedAt.String)
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
