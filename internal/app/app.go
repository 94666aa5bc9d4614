// Package app wires the configured services together for the server and
// the operator CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leads/postback/internal/api"
	"github.com/leads/postback/internal/campaign"
	"github.com/leads/postback/internal/config"
	"github.com/leads/postback/internal/filestore"
	"github.com/leads/postback/internal/ingestion"
	"github.com/leads/postback/internal/notify"
	"github.com/leads/postback/internal/repository"
	"github.com/leads/postback/internal/rotation"
	"github.com/leads/postback/internal/storage"
	"github.com/leads/postback/internal/telegram"
)

// App holds the long-lived services of the process.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Files     *filestore.Store
	Groups    *campaign.Table
	Postbacks *repository.PostbackRepo
	JobRuns   *repository.JobRunRepo
	Ingestion *ingestion.Service
	Runner    *rotation.Runner
	// Jobs are keyed by job name. The dispatch job is absent when chat
	// delivery is disabled or not configured.
	Jobs map[string]rotation.Job

	log zerolog.Logger
}

// Build opens the database and the data directory and constructs every
// service from cfg.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	groups := campaign.Default()
	if cfg.CampaignsFile != "" {
		t, err := campaign.Load(cfg.CampaignsFile)
		if err != nil {
			return nil, err
		}
		groups = t
	}

	files, err := filestore.New(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", cfg.DBPath).Msg("Initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Files:     files,
		Groups:    groups,
		Postbacks: repository.NewPostbackRepo(db),
		JobRuns:   repository.NewJobRunRepo(db),
		Jobs:      make(map[string]rotation.Job),
		log:       log,
	}
	a.Ingestion = ingestion.NewService(files, groups, a.Postbacks, cfg.Now, log)

	var store rotation.ObjectStore
	if cfg.Storage.Enabled() {
		s3c, err := storage.NewS3Client(ctx, cfg.Storage, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		store = s3c
	} else {
		log.Warn().Msg("Object storage is not configured, ledgers will not be archived")
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Telegram.ErrorsEnabled() {
		alerts := telegram.New(cfg.Telegram.APIBaseURL, cfg.Telegram.ErrorBotToken)
		notifier = notify.NewChatNotifier(alerts, cfg.Telegram.ErrorChatID, "postback", log)
	}
	a.Runner = rotation.NewRunner(a.JobRuns, notifier, cfg.Now, log)

	prefix := cfg.Storage.KeyPrefix
	a.Jobs[rotation.UploadJobName] = rotation.NewUploadJob(files, store, prefix, log)
	a.Jobs[rotation.RetentionJobName] = rotation.NewRetentionJob(files, cfg.Jobs.RetentionDays, log)

	switch {
	case !cfg.Jobs.DispatchEnabled:
		log.Info().Msg("Ledger dispatch is disabled")
	case !cfg.Telegram.Enabled():
		log.Warn().Msg("Telegram is not configured, ledgers will not be dispatched")
	default:
		bot := telegram.New(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken)
		a.Jobs[rotation.DispatchJobName] = rotation.NewDispatchJob(files, store, bot, a.JobRuns, cfg.Telegram.ChatID, prefix, log)
	}

	return a, nil
}

// Router returns the HTTP handler serving postbacks and the read API.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Ingestion: a.Ingestion,
		Files:     a.Files,
		Groups:    a.Groups,
		Postbacks: a.Postbacks,
		JobRuns:   a.JobRuns,
		Location:  a.Config.Location,
		Now:       a.Config.Now,
	}, a.log)
}

// Tasks returns the scheduled form of every configured job.
func (a *App) Tasks() []*rotation.Task {
	times := map[string]config.ClockTime{
		rotation.UploadJobName:    a.Config.Jobs.UploadAt,
		rotation.DispatchJobName:  a.Config.Jobs.DispatchAt,
		rotation.RetentionJobName: a.Config.Jobs.RetentionAt,
	}

	var tasks []*rotation.Task
	for _, name := range []string{rotation.UploadJobName, rotation.RetentionJobName, rotation.DispatchJobName} {
		job, ok := a.Jobs[name]
		if !ok {
			continue
		}
		tasks = append(tasks, rotation.NewTask(job, times[name], a.Runner, a.Config.Now))
	}
	return tasks
}

func (a *App) Close() error {
	return a.DB.Close()
}
