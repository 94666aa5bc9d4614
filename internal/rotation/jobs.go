package rotation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/leads/postback/internal/domain"
	"github.com/leads/postback/internal/filestore"
)

const (
	UploadJobName    = "upload"
	DispatchJobName  = "dispatch"
	RetentionJobName = "retention"
)

// ObjectKey returns the bucket key of the ledger for day.
func ObjectKey(prefix string, day time.Time) string {
	return prefix + filestore.LedgerName(day)
}

// Caption is the chat caption sent with the ledger of day.
func Caption(day time.Time) string {
	return "Файл sub6 за " + day.Format(domain.DayLayout)
}

// UploadJob archives the previous day's ledger and pre-creates the ledgers
// for the following days.
type UploadJob struct {
	files  *filestore.Store
	store  ObjectStore
	prefix string
	log    zerolog.Logger
}

// NewUploadJob creates the upload job. A nil store disables the upload but
// the job still pre-creates ledgers.
func NewUploadJob(files *filestore.Store, store ObjectStore, prefix string, log zerolog.Logger) *UploadJob {
	return &UploadJob{
		files:  files,
		store:  store,
		prefix: prefix,
		log:    log.With().Str("job", UploadJobName).Logger(),
	}
}

func (j *UploadJob) Name() string { return UploadJobName }

func (j *UploadJob) Day(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -1)
}

func (j *UploadJob) Run(ctx context.Context, day time.Time) (string, error) {
	detail, uploadErr := j.upload(ctx, day)

	for i := 1; i <= 2; i++ {
		path, err := j.files.TouchLedger(day.AddDate(0, 0, i))
		if err != nil {
			return "", errors.Join(uploadErr, err)
		}
		j.log.Debug().Str("path", path).Msg("Ledger ready")
	}

	return detail, uploadErr
}

func (j *UploadJob) upload(ctx context.Context, day time.Time) (string, error) {
	path := j.files.LedgerPath(day)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			j.log.Info().Str("file", filestore.LedgerName(day)).Msg("No ledger for day, skipping upload")
			return "no ledger", nil
		}
		return "", fmt.Errorf("stat ledger: %w", err)
	}

	if j.store == nil {
		j.log.Warn().Msg("Object storage is not configured, skipping upload")
		return "object storage not configured", nil
	}

	key := ObjectKey(j.prefix, day)
	if err := j.store.Upload(ctx, key, path); err != nil {
		return "", err
	}
	return "uploaded " + key, nil
}

// DispatchJob sends the previous day's ledger to the chat. The local copy
// is removed once delivered, but only after the upload job archived it.
type DispatchJob struct {
	files     *filestore.Store
	store     ObjectStore
	messenger Messenger
	runs      RunStore
	chatID    string
	prefix    string
	log       zerolog.Logger
}

func NewDispatchJob(files *filestore.Store, store ObjectStore, messenger Messenger, runs RunStore, chatID, prefix string, log zerolog.Logger) *DispatchJob {
	return &DispatchJob{
		files:     files,
		store:     store,
		messenger: messenger,
		runs:      runs,
		chatID:    chatID,
		prefix:    prefix,
		log:       log.With().Str("job", DispatchJobName).Logger(),
	}
}

func (j *DispatchJob) Name() string { return DispatchJobName }

func (j *DispatchJob) Day(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -1)
}

func (j *DispatchJob) Run(ctx context.Context, day time.Time) (string, error) {
	path := j.files.LedgerPath(day)
	name := filestore.LedgerName(day)

	_, err := os.Stat(path)
	switch {
	case err == nil:
		j.log.Debug().Str("file", name).Msg("Using local ledger")
	case !os.IsNotExist(err):
		return "", fmt.Errorf("stat ledger: %w", err)
	case j.store == nil:
		return "", fmt.Errorf("ledger %s not found locally and object storage is not configured", name)
	default:
		return j.sendArchived(ctx, day)
	}

	if err := j.messenger.SendDocument(ctx, j.chatID, path, Caption(day)); err != nil {
		return "", fmt.Errorf("send %s: %w", name, err)
	}

	archived, err := j.archived(ctx, day)
	if err != nil {
		return "", err
	}
	if !archived {
		j.log.Warn().Str("file", name).Msg("Ledger not archived yet, keeping local copy")
		return "sent " + name + ", kept local copy", nil
	}
	if err := j.files.RemoveLedger(day); err != nil {
		return "", err
	}
	return "sent " + name, nil
}

// sendArchived downloads the ledger of day into a scratch directory and
// sends it from there. The data directory is never written.
func (j *DispatchJob) sendArchived(ctx context.Context, day time.Time) (string, error) {
	name := filestore.LedgerName(day)

	tmp, err := os.MkdirTemp("", "dispatch-")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	path := filepath.Join(tmp, name)
	if err := j.store.Download(ctx, ObjectKey(j.prefix, day), path); err != nil {
		return "", err
	}
	if err := j.messenger.SendDocument(ctx, j.chatID, path, Caption(day)); err != nil {
		return "", fmt.Errorf("send %s: %w", name, err)
	}
	return "sent " + name + " from storage", nil
}

// archived reports whether the upload job stored the ledger of day.
func (j *DispatchJob) archived(ctx context.Context, day time.Time) (bool, error) {
	if j.store == nil || j.runs == nil {
		return false, nil
	}
	ok, err := j.runs.HasSucceeded(ctx, UploadJobName, day.Format(domain.DayLayout))
	if err != nil {
		return false, fmt.Errorf("read upload history: %w", err)
	}
	return ok, nil
}

// RetentionJob removes ledgers older than the retention window.
type RetentionJob struct {
	files    *filestore.Store
	keepDays int
	log      zerolog.Logger
}

func NewRetentionJob(files *filestore.Store, keepDays int, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		files:    files,
		keepDays: keepDays,
		log:      log.With().Str("job", RetentionJobName).Logger(),
	}
}

func (j *RetentionJob) Name() string { return RetentionJobName }

func (j *RetentionJob) Day(now time.Time) time.Time {
	return startOfDay(now)
}

// Run deletes every ledger dated before day minus the retention window.
func (j *RetentionJob) Run(_ context.Context, day time.Time) (string, error) {
	cutoff := day.AddDate(0, 0, -j.keepDays)

	ledgers, err := j.files.ListLedgers(day.Location())
	if err != nil {
		return "", err
	}

	removed := 0
	for _, l := range ledgers {
		if !l.Day.Before(cutoff) {
			break
		}
		if err := j.files.RemoveLedger(l.Day); err != nil {
			return fmt.Sprintf("removed %d", removed), err
		}
		j.log.Info().Str("file", l.Name).Msg("Ledger removed")
		removed++
	}
	return fmt.Sprintf("removed %d", removed), nil
}
