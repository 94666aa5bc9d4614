// Package scheduler fires named daily jobs on cron schedules evaluated in
// a fixed location and replays the ones missed while the process was down.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of work carrying its own schedule.
type Job interface {
	Name() string
	// Schedule is a cron expression with a leading seconds field.
	Schedule() string
	Run() error
}

var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Scheduler struct {
	cron    *cron.Cron
	loc     *time.Location
	entries map[string]cron.EntryID
	catchUp sync.WaitGroup
	log     zerolog.Logger
}

// New creates a scheduler evaluating schedules in loc.
func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		loc:     loc,
		entries: make(map[string]cron.EntryID),
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Register schedules every job. Names must be unique.
func (s *Scheduler) Register(jobs ...Job) error {
	for _, job := range jobs {
		if _, ok := s.entries[job.Name()]; ok {
			return fmt.Errorf("job %s already registered", job.Name())
		}
		sched, err := parser.Parse(job.Schedule())
		if err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}

		s.entries[job.Name()] = s.cron.Schedule(sched, cron.FuncJob(func() {
			s.run(job, "schedule")
		}))

		s.log.Info().
			Str("job", job.Name()).
			Str("schedule", job.Schedule()).
			Time("next_run", sched.Next(time.Now().In(s.loc))).
			Msg("Job registered")
	}
	return nil
}

// CatchUp runs jobs one after another, in the given order, in the
// background. Stop waits for the pass to finish.
func (s *Scheduler) CatchUp(jobs ...Job) {
	if len(jobs) == 0 {
		return
	}
	s.catchUp.Add(1)
	go func() {
		defer s.catchUp.Done()
		for _, job := range jobs {
			s.run(job, "catch-up")
		}
	}()
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")
}

// Stop halts the schedule and waits for running jobs, catch-up included.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.catchUp.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) run(job Job, trigger string) {
	log := s.log.With().Str("job", job.Name()).Str("trigger", trigger).Logger()
	log.Debug().Msg("Running job")

	if err := job.Run(); err != nil {
		log.Error().Err(err).Msg("Job failed")
		return
	}
	log.Debug().Msg("Job completed")
}
