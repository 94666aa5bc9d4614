package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leads/postback/internal/app"
	"github.com/leads/postback/internal/config"
	"github.com/leads/postback/internal/logger"
	"github.com/leads/postback/internal/rotation"
	"github.com/leads/postback/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("timezone", cfg.Location.String()).
		Msg("Starting postback receiver")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	if n, err := a.Postbacks.Count(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to count stored postbacks")
	} else {
		log.Info().Int("postbacks", n).Msg("Database ready")
	}

	// Initialize scheduler
	var sched *scheduler.Scheduler
	if cfg.Jobs.Enabled {
		sched = scheduler.New(cfg.Location, log)
		if err := registerJobs(sched, a, cfg.Now()); err != nil {
			log.Fatal().Err(err).Msg("Failed to register jobs")
		}
		sched.Start()
	} else {
		log.Info().Msg("Scheduler is disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Waits for scheduled and catch-up runs before the database closes.
	if sched != nil {
		sched.Stop()
	}

	log.Info().Msg("Server stopped")
}

// registerJobs schedules the daily jobs and replays, earliest trigger
// first, those whose trigger time already passed today. Runs that succeeded
// before are skipped by the runner.
func registerJobs(sched *scheduler.Scheduler, a *app.App, now time.Time) error {
	tasks := a.Tasks()

	jobs := make([]scheduler.Job, 0, len(tasks))
	for _, task := range tasks {
		jobs = append(jobs, task)
	}
	if err := sched.Register(jobs...); err != nil {
		return err
	}

	var due []scheduler.Job
	for _, task := range rotation.Due(tasks, now) {
		due = append(due, task)
	}
	sched.CatchUp(due...)
	return nil
}
