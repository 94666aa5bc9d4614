// Package rotation holds the daily jobs that move ledger files out of the
// data directory: upload to object storage, dispatch to chat and retention.
package rotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leads/postback/internal/domain"
	"github.com/leads/postback/internal/metrics"
	"github.com/leads/postback/internal/notify"
)

// ObjectStore is the bucket used to archive ledgers.
type ObjectStore interface {
	Upload(ctx context.Context, key, localPath string) error
	Download(ctx context.Context, key, localPath string) error
}

// Messenger delivers a ledger file to a chat.
type Messenger interface {
	SendDocument(ctx context.Context, chatID, path, caption string) error
}

// RunStore keeps the history of job runs.
type RunStore interface {
	Start(ctx context.Context, job, day string, at time.Time) (int64, error)
	Finish(ctx context.Context, id int64, status domain.JobStatus, detail string, at time.Time) error
	HasSucceeded(ctx context.Context, job, day string) (bool, error)
}

// Job is one daily operation on the ledger of a given day.
type Job interface {
	Name() string
	// Day returns the ledger day a run started at now works on.
	Day(now time.Time) time.Time
	Run(ctx context.Context, day time.Time) (detail string, err error)
}

// Runner executes jobs at most once successfully per day and reports
// failures to the notifier.
type Runner struct {
	runs     RunStore
	notifier notify.Notifier
	now      func() time.Time
	log      zerolog.Logger

	mu sync.Mutex
}

func NewRunner(runs RunStore, notifier notify.Notifier, now func() time.Time, log zerolog.Logger) *Runner {
	return &Runner{
		runs:     runs,
		notifier: notifier,
		now:      now,
		log:      log.With().Str("component", "rotation").Logger(),
	}
}

// Run executes job for day. Unless force is set, a job that already
// succeeded for day is skipped.
func (r *Runner) Run(ctx context.Context, job Job, day time.Time, force bool) (domain.JobStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dayKey := day.Format(domain.DayLayout)
	log := r.log.With().Str("job", job.Name()).Str("day", dayKey).Logger()

	if !force {
		done, err := r.runs.HasSucceeded(ctx, job.Name(), dayKey)
		if err != nil {
			log.Error().Err(err).Msg("Failed to read job history")
			return domain.JobFailed, err
		}
		if done {
			log.Debug().Msg("Job already completed for day")
			metrics.RecordJobRun(job.Name(), string(domain.JobSkipped))
			return domain.JobSkipped, nil
		}
	}

	id, err := r.runs.Start(ctx, job.Name(), dayKey, r.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to record job start")
		return domain.JobFailed, err
	}

	start := time.Now()
	detail, runErr := job.Run(ctx, day)

	status := domain.JobSucceeded
	if runErr != nil {
		status = domain.JobFailed
		detail = runErr.Error()
	}

	if err := r.runs.Finish(ctx, id, status, detail, r.now()); err != nil {
		log.Error().Err(err).Msg("Failed to record job result")
	}
	metrics.RecordJobRun(job.Name(), string(status))

	if runErr != nil {
		log.Error().Err(runErr).Dur("duration_ms", time.Since(start)).Msg("Job failed")
		r.notifier.Notify(ctx, fmt.Sprintf("%s for %s failed: %v", job.Name(), dayKey, runErr))
		return status, runErr
	}

	log.Info().Str("detail", detail).Dur("duration_ms", time.Since(start)).Msg("Job completed")
	return status, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
