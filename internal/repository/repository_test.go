package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leads/postback/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func record(id, sub1, group string, outcome domain.Outcome, at time.Time) *domain.PostbackRecord {
	return &domain.PostbackRecord{
		Postback: domain.Postback{
			ID: id, Sub1: sub1, Sub5: "42", Sub6: "9001", Sum: "10.00", Status: "1", ReceivedAt: at,
		},
		Group:        group,
		Outcome:      outcome,
		LeadCaptured: true,
	}
}

func TestInitDB_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, createTables(db))
}

func TestPostbackRepo_InsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewPostbackRepo(newTestDB(t))
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, record("a", "krolik_1", "krolik", domain.OutcomeAggregated, base)))
	require.NoError(t, repo.Insert(ctx, record("b", "other", "", domain.OutcomeLeadOnly, base.Add(time.Minute))))
	require.NoError(t, repo.Insert(ctx, record("c", "krolik_1", "krolik", domain.OutcomeAggregated, base.Add(2*time.Minute))))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	recs, total, err := repo.List(ctx, PostbackFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0].ID, "newest first")
	assert.True(t, recs[0].LeadCaptured)
	assert.Equal(t, base.Add(2*time.Minute), recs[0].ReceivedAt)

	recs, total, err = repo.List(ctx, PostbackFilter{Group: "krolik", Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID)

	recs, _, err = repo.List(ctx, PostbackFilter{Outcome: string(domain.OutcomeLeadOnly)})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].ID)

	from := base.Add(30 * time.Second)
	recs, _, err = repo.List(ctx, PostbackFilter{From: &from, Sub1: "krolik_1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c", recs[0].ID)
}

func TestPostbackRepo_DuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := NewPostbackRepo(newTestDB(t))
	at := time.Now()

	require.NoError(t, repo.Insert(ctx, record("a", "x", "", domain.OutcomeDropped, at)))
	assert.Error(t, repo.Insert(ctx, record("a", "x", "", domain.OutcomeDropped, at)))
}

func TestPostbackRepo_GetSummary(t *testing.T) {
	ctx := context.Background()
	repo := NewPostbackRepo(newTestDB(t))
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, record("a", "krolik", "krolik", domain.OutcomeAggregated, day.Add(time.Hour))))
	require.NoError(t, repo.Insert(ctx, record("b", "monzi", "monzi", domain.OutcomeAggregated, day.Add(2*time.Hour))))
	require.NoError(t, repo.Insert(ctx, record("c", "x", "", domain.OutcomeLeadOnly, day.Add(3*time.Hour))))
	require.NoError(t, repo.Insert(ctx, record("d", "krolik", "krolik", domain.OutcomeAggregated, day.AddDate(0, 0, 1))))

	s, err := repo.GetSummary(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.LeadsCaptured)
	assert.Equal(t, map[string]int{"aggregated": 2, "lead_only": 1}, s.ByOutcome)
	assert.Equal(t, map[string]int{"krolik": 1, "monzi": 1}, s.ByGroup)
}

func TestJobRunRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepo(newTestDB(t))
	at := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	ok, err := repo.HasSucceeded(ctx, "upload", "18.10.2026")
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := repo.Start(ctx, "upload", "18.10.2026", at)
	require.NoError(t, err)
	require.NoError(t, repo.Finish(ctx, id, domain.JobFailed, "boom", at.Add(time.Second)))

	ok, err = repo.HasSucceeded(ctx, "upload", "18.10.2026")
	require.NoError(t, err)
	assert.False(t, ok, "a failed run does not count")

	id, err = repo.Start(ctx, "upload", "18.10.2026", at.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.Finish(ctx, id, domain.JobSucceeded, "", at.Add(2*time.Minute)))

	_, err = repo.Start(ctx, "dispatch", "18.10.2026", at.Add(time.Hour))
	require.NoError(t, err)

	ok, err = repo.HasSucceeded(ctx, "upload", "18.10.2026")
	require.NoError(t, err)
	assert.True(t, ok)

	runs, err := repo.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "dispatch", runs[0].Job)
	assert.Equal(t, domain.JobRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)

	runs, err = repo.List(ctx, "upload", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.JobSucceeded, runs[0].Status)
	require.NotNil(t, runs[1].FinishedAt)
	assert.Equal(t, "boom", runs[1].Detail)
	assert.Equal(t, at, runs[1].StartedAt)
}
