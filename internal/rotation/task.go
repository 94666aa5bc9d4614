package rotation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/leads/postback/internal/config"
)

const taskTimeout = 10 * time.Minute

// Task binds a job to its daily trigger time so it can be registered with
// the scheduler.
type Task struct {
	job    Job
	at     config.ClockTime
	runner *Runner
	now    func() time.Time
}

func NewTask(job Job, at config.ClockTime, runner *Runner, now func() time.Time) *Task {
	return &Task{job: job, at: at, runner: runner, now: now}
}

func (t *Task) Name() string { return t.job.Name() }

// Schedule returns the cron expression, with seconds, firing daily at the
// trigger time.
func (t *Task) Schedule() string {
	return fmt.Sprintf("0 %d %d * * *", t.at.Minute, t.at.Hour)
}

// Due reports whether today's trigger time has passed at now.
func (t *Task) Due(now time.Time) bool {
	return !now.Before(t.at.On(now))
}

func (t *Task) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	_, err := t.runner.Run(ctx, t.job, t.job.Day(t.now()), false)
	return err
}

// Due returns the tasks whose trigger time passed at now, earliest trigger
// first, so that a day's upload runs before its dispatch.
func Due(tasks []*Task, now time.Time) []*Task {
	var due []*Task
	for _, t := range tasks {
		if t.Due(now) {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, k int) bool {
		a, b := due[i].at, due[k].at
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.Minute < b.Minute
	})
	return due
}
