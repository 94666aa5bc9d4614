package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leads/postback/internal/campaign"
	"github.com/leads/postback/internal/domain"
	"github.com/leads/postback/internal/filestore"
)

var fixedNow = time.Date(2026, 10, 19, 14, 30, 5, 0, time.FixedZone("MSK", 3*3600))

type fakeRecorder struct {
	records []domain.PostbackRecord
	err     error
}

func (f *fakeRecorder) Insert(_ context.Context, rec *domain.PostbackRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *rec)
	return nil
}

type fixture struct {
	svc   *Service
	files *filestore.Store
	audit *fakeRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	files, err := filestore.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	audit := &fakeRecorder{}
	svc := NewService(files, campaign.Default(), audit, func() time.Time { return fixedNow }, zerolog.Nop())
	return &fixture{svc: svc, files: files, audit: audit}
}

func (f *fixture) leads(t *testing.T) []string {
	t.Helper()
	leads, err := f.files.ReadLeads(fixedNow)
	require.NoError(t, err)
	return leads
}

func (f *fixture) todaySums(t *testing.T, file string) map[string]any {
	t.Helper()
	blocks, err := f.files.ReadAggregate(file)
	require.NoError(t, err)
	for _, b := range blocks {
		if b.Date == "19.10.2026" {
			return b.Sums
		}
	}
	return nil
}

func (f *fixture) income(t *testing.T) []domain.IncomeRecord {
	t.Helper()
	recs, err := f.files.ReadIncome()
	require.NoError(t, err)
	return recs
}

func krolikPostback() domain.Postback {
	return domain.Postback{Sub1: "KROLIK_camp", Sub5: "42", Sub6: "9001", Sum: "100.00", Status: "1"}
}

func TestProcess_ApprovedKrolikPostback(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Process(context.Background(), krolikPostback())

	assert.True(t, res.LeadCaptured)
	assert.True(t, res.Aggregated)
	assert.True(t, res.IncomeRecorded)
	assert.Equal(t, "krolik", res.Group)
	assert.Equal(t, 100.0, res.Total)
	assert.Equal(t, domain.OutcomeAggregated, res.Outcome)
	assert.NotEmpty(t, res.ID)

	assert.Equal(t, []string{"9001"}, f.leads(t))
	assert.Equal(t, map[string]any{"42": 100.0}, f.todaySums(t, "krolik.json"))
	assert.Equal(t, []domain.IncomeRecord{{
		Sub1: "krolik", Sub5: "42", Sum: "100.00", Sub6: "9001", Date: "2026-10-19 14:30:05",
	}}, f.income(t))

	require.Len(t, f.audit.records, 1)
	assert.Equal(t, res.ID, f.audit.records[0].ID)
	assert.Equal(t, fixedNow, f.audit.records[0].ReceivedAt)
	assert.Equal(t, "krolik", f.audit.records[0].Group)
}

func TestProcess_StatusNotApproved(t *testing.T) {
	f := newFixture(t)
	pb := krolikPostback()
	pb.Status = "0"

	res := f.svc.Process(context.Background(), pb)

	assert.True(t, res.LeadCaptured)
	assert.False(t, res.Aggregated)
	assert.Equal(t, ReasonNotApproved, res.Reason)
	assert.Equal(t, domain.OutcomeLeadOnly, res.Outcome)
	assert.Equal(t, []string{"9001"}, f.leads(t))
	assert.Nil(t, f.todaySums(t, "krolik.json"))
	assert.Empty(t, f.income(t))
}

func TestProcess_Accumulates(t *testing.T) {
	f := newFixture(t)
	pb := krolikPostback()
	pb.Sum = "10.00"
	f.svc.Process(context.Background(), pb)

	pb.Sum = "5.50"
	res := f.svc.Process(context.Background(), pb)

	assert.Equal(t, 15.5, res.Total)
	assert.Equal(t, map[string]any{"42": 15.5}, f.todaySums(t, "krolik.json"))
	assert.Len(t, f.income(t), 2)
}

func TestProcess_ReplayDoublesTheSum(t *testing.T) {
	f := newFixture(t)
	pb := krolikPostback()

	f.svc.Process(context.Background(), pb)
	f.svc.Process(context.Background(), pb)

	assert.Equal(t, map[string]any{"42": 200.0}, f.todaySums(t, "krolik.json"))
	assert.Equal(t, []string{"9001", "9001"}, f.leads(t))
}

func TestProcess_ZeroSumsNeverAggregate(t *testing.T) {
	for _, sum := range []string{"0", "0.0", "0.00"} {
		t.Run(sum, func(t *testing.T) {
			f := newFixture(t)
			pb := krolikPostback()
			pb.Sum = sum

			res := f.svc.Process(context.Background(), pb)

			assert.False(t, res.Aggregated)
			assert.Equal(t, ReasonZeroSum, res.Reason)
			assert.Nil(t, f.todaySums(t, "krolik.json"))
			assert.Empty(t, f.income(t))
		})
	}
}

func TestProcess_Sub6Validation(t *testing.T) {
	tests := []struct {
		sub6     string
		captured bool
	}{
		{"9001", true},
		{"0", true},
		{"", false},
		{"abc", false},
		{"12 34", false},
		{"-5", false},
		{"1.5", false},
	}

	for _, tt := range tests {
		t.Run(tt.sub6, func(t *testing.T) {
			f := newFixture(t)
			pb := krolikPostback()
			pb.Sub6 = tt.sub6

			res := f.svc.Process(context.Background(), pb)

			assert.Equal(t, tt.captured, res.LeadCaptured)
			assert.True(t, res.Aggregated, "lead validation never blocks aggregation")
			if tt.captured {
				assert.Equal(t, []string{tt.sub6}, f.leads(t))
			} else {
				assert.Empty(t, f.leads(t))
			}
		})
	}
}

func TestProcess_AggregationPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Postback)
		reason string
	}{
		{"missing sub1", func(p *domain.Postback) { p.Sub1 = "" }, ReasonMissingSub1},
		{"missing sub5", func(p *domain.Postback) { p.Sub5 = "" }, ReasonInvalidSub5},
		{"non-numeric sub5", func(p *domain.Postback) { p.Sub5 = "4x" }, ReasonInvalidSub5},
		{"non-numeric sum", func(p *domain.Postback) { p.Sum = "lots" }, ReasonInvalidSum},
		{"empty status", func(p *domain.Postback) { p.Status = "" }, ReasonNotApproved},
		{"status with spaces", func(p *domain.Postback) { p.Status = " 1" }, ReasonNotApproved},
		{"unknown campaign", func(p *domain.Postback) { p.Sub1 = "someone_else" }, ReasonNoGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			pb := krolikPostback()
			tt.mutate(&pb)

			res := f.svc.Process(context.Background(), pb)

			assert.False(t, res.Aggregated)
			assert.Equal(t, tt.reason, res.Reason)
			assert.True(t, res.LeadCaptured)
			assert.Empty(t, f.income(t))

			entries, err := os.ReadDir(f.files.Dir())
			require.NoError(t, err)
			for _, e := range entries {
				assert.NotEqual(t, ".json", filepath.Ext(e.Name()), "no aggregate written: %s", e.Name())
			}
		})
	}
}

func TestProcess_GroupWithoutIncomeLog(t *testing.T) {
	f := newFixture(t)
	pb := krolikPostback()
	pb.Sub1 = "Karakoz-1"

	res := f.svc.Process(context.Background(), pb)

	assert.True(t, res.Aggregated)
	assert.False(t, res.IncomeRecorded)
	assert.Equal(t, "karakoz", res.Group)
	assert.Equal(t, map[string]any{"42": 100.0}, f.todaySums(t, "karakoz.json"))
	assert.Empty(t, f.income(t))
}

func TestProcess_IncomeUsesProvidedDate(t *testing.T) {
	f := newFixture(t)
	pb := krolikPostback()
	pb.Sub1 = "banknota_x"
	pb.Date = "2026-10-18T23:59:00"

	f.svc.Process(context.Background(), pb)

	recs := f.income(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "krolik", recs[0].Sub1)
	assert.Equal(t, "2026-10-18T23:59:00", recs[0].Date)
}

func TestProcess_RecoversCorruptAggregate(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.files.Dir(), "krolik.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"date": "18.10.20`), 0644))

	res := f.svc.Process(context.Background(), krolikPostback())

	assert.True(t, res.Aggregated)
	blocks, err := f.files.ReadAggregate("krolik.json")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, map[string]any{"42": 100.0}, blocks[0].Sums)
}

func TestProcess_AuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.audit.err = errors.New("database is locked")

	res := f.svc.Process(context.Background(), krolikPostback())

	assert.True(t, res.Aggregated)
	assert.True(t, res.LeadCaptured)
}

func TestProcess_DroppedWhenNothingUsable(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Process(context.Background(), domain.Postback{})

	assert.Equal(t, domain.OutcomeDropped, res.Outcome)
	require.Len(t, f.audit.records, 1)
	assert.Equal(t, domain.OutcomeDropped, f.audit.records[0].Outcome)
}

func TestProcess_NilRecorder(t *testing.T) {
	files, err := filestore.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	svc := NewService(files, campaign.Default(), nil, func() time.Time { return fixedNow }, zerolog.Nop())

	res := svc.Process(context.Background(), krolikPostback())
	assert.True(t, res.Aggregated)
}
