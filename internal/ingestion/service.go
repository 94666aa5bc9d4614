package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leads/postback/internal/campaign"
	"github.com/leads/postback/internal/domain"
	"github.com/leads/postback/internal/filestore"
	"github.com/leads/postback/internal/metrics"
)

// Reasons reported when a postback does not reach a daily aggregate.
const (
	ReasonMissingSub1 = "sub1 is missing"
	ReasonInvalidSub5 = "sub5 is not numeric"
	ReasonInvalidSum  = "sum is not a decimal number"
	ReasonZeroSum     = "sum is zero"
	ReasonNotApproved = "status is not approved"
	ReasonNoGroup     = "sub1 matches no campaign group"
	ReasonWriteFailed = "aggregate write failed"
)

// Recorder stores the audit trail of received postbacks.
type Recorder interface {
	Insert(ctx context.Context, rec *domain.PostbackRecord) error
}

// Result describes what Process did with one postback.
type Result struct {
	ID             string         `json:"id"`
	Outcome        domain.Outcome `json:"outcome"`
	LeadCaptured   bool           `json:"lead_captured"`
	Aggregated     bool           `json:"aggregated"`
	Group          string         `json:"group,omitempty"`
	Total          float64        `json:"total,omitempty"`
	IncomeRecorded bool           `json:"income_recorded"`
	Reason         string         `json:"reason,omitempty"`
}

// Service classifies postbacks and writes them to the ledger, the daily
// aggregate records and the income log.
type Service struct {
	files  *filestore.Store
	groups *campaign.Table
	audit  Recorder
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a new ingestion service. audit may be nil.
func NewService(
	files *filestore.Store,
	groups *campaign.Table,
	audit Recorder,
	now func() time.Time,
	log zerolog.Logger,
) *Service {
	return &Service{
		files:  files,
		groups: groups,
		audit:  audit,
		now:    now,
		log:    log.With().Str("component", "ingestion").Logger(),
	}
}

// Process captures the lead and, for approved commissions, accumulates the
// amount into the matching campaign group. The two actions are independent;
// failures are logged and reflected in the result, never returned.
//
// Replaying a postback accumulates its amount again.
func (s *Service) Process(ctx context.Context, pb domain.Postback) Result {
	now := s.now()
	if pb.ID == "" {
		pb.ID = uuid.NewString()
	}
	if pb.ReceivedAt.IsZero() {
		pb.ReceivedAt = now
	}

	log := s.log.With().Str("postback_id", pb.ID).Str("sub1", pb.Sub1).Logger()

	res := Result{ID: pb.ID}
	res.LeadCaptured = s.captureLead(now, pb.Sub6, log)
	s.aggregate(now, pb, &res, log)

	switch {
	case res.Aggregated:
		res.Outcome = domain.OutcomeAggregated
	case res.LeadCaptured:
		res.Outcome = domain.OutcomeLeadOnly
	default:
		res.Outcome = domain.OutcomeDropped
	}
	metrics.RecordPostback(string(res.Outcome))

	if s.audit != nil {
		rec := &domain.PostbackRecord{
			Postback:     pb,
			Group:        res.Group,
			Outcome:      res.Outcome,
			LeadCaptured: res.LeadCaptured,
			Reason:       res.Reason,
		}
		if err := s.audit.Insert(ctx, rec); err != nil {
			log.Error().Err(err).Msg("Failed to store postback audit record")
			metrics.RecordWriteError("audit")
		}
	}

	return res
}

func (s *Service) captureLead(now time.Time, sub6 string, log zerolog.Logger) bool {
	if sub6 == "" {
		return false
	}
	if !isDigits(sub6) {
		log.Warn().Str("sub6", sub6).Msg("Discarding non-numeric sub6")
		return false
	}

	if err := s.files.AppendLead(now, sub6); err != nil {
		log.Error().Err(err).Str("sub6", sub6).Msg("Failed to append lead to ledger")
		metrics.RecordWriteError("ledger")
		return false
	}

	metrics.RecordLead()
	log.Info().Str("sub6", sub6).Msg("Lead captured")
	return true
}

func (s *Service) aggregate(now time.Time, pb domain.Postback, res *Result, log zerolog.Logger) {
	if pb.Sub1 == "" {
		res.Reason = ReasonMissingSub1
		log.Debug().Msg("Skipping aggregation: " + res.Reason)
		return
	}
	if !isDigits(pb.Sub5) {
		res.Reason = ReasonInvalidSub5
		log.Warn().Str("sub5", pb.Sub5).Msg("Skipping aggregation: " + res.Reason)
		return
	}

	amount, err := parseSum(pb.Sum)
	if err != nil {
		if errors.Is(err, errZeroSum) {
			res.Reason = ReasonZeroSum
			log.Info().Str("sum", pb.Sum).Msg("Skipping aggregation: " + res.Reason)
		} else {
			res.Reason = ReasonInvalidSum
			log.Warn().Str("sum", pb.Sum).Msg("Skipping aggregation: " + res.Reason)
		}
		return
	}

	if pb.Status != domain.StatusApproved {
		res.Reason = ReasonNotApproved
		log.Info().Str("status", pb.Status).Msg("Skipping aggregation: " + res.Reason)
		return
	}

	group, ok := s.groups.Match(pb.Sub1)
	if !ok {
		res.Reason = ReasonNoGroup
		log.Info().Msg("Skipping aggregation: " + res.Reason)
		return
	}
	res.Group = group.Label

	total, err := s.files.AddToAggregate(group.File, now, pb.Sub5, amount)
	if err != nil {
		res.Reason = ReasonWriteFailed
		log.Error().Err(err).Str("group", group.Label).Msg("Failed to update daily aggregate")
		metrics.RecordWriteError("aggregate")
		return
	}
	res.Aggregated = true
	res.Total = total
	metrics.RecordAggregateWrite(group.Label)

	log.Info().
		Str("group", group.Label).
		Str("sub5", pb.Sub5).
		Float64("amount", amount).
		Float64("total", total).
		Msg("Commission aggregated")

	if !group.Income {
		return
	}

	date := pb.Date
	if date == "" {
		date = now.Format(domain.TimestampLayout)
	}
	err = s.files.AppendIncome(domain.IncomeRecord{
		Sub1: group.Label,
		Sub5: pb.Sub5,
		Sum:  pb.Sum,
		Sub6: pb.Sub6,
		Date: date,
	})
	if err != nil {
		log.Error().Err(err).Str("group", group.Label).Msg("Failed to append income record")
		metrics.RecordWriteError("income")
		return
	}
	res.IncomeRecorded = true
}
