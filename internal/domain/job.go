package domain

import "time"

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
)

// JobRun records one execution of a daily job for a given ledger day.
type JobRun struct {
	ID         int64      `json:"id"`
	Job        string     `json:"job"`
	Day        string     `json:"day"`
	Status     JobStatus  `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
