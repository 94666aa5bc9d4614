package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/leads/postback/internal/domain"
)

type PostbackRepo struct {
	db *sql.DB
}

func NewPostbackRepo(db *sql.DB) *PostbackRepo {
	return &PostbackRepo{db: db}
}

func (r *PostbackRepo) Insert(ctx context.Context, rec *domain.PostbackRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO postbacks
		(id, received_at, sub1, sub5, sub6, sum, status, date,
		 campaign_group, outcome, lead_captured, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.ReceivedAt.UTC().Format(timeLayout), rec.Sub1, rec.Sub5,
		rec.Sub6, rec.Sum, rec.Status, rec.Date, rec.Group, string(rec.Outcome),
		rec.LeadCaptured, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert postback: %w", err)
	}
	return nil
}

func (r *PostbackRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM postbacks").Scan(&count)
	return count, err
}

type PostbackFilter struct {
	Sub1    string
	Group   string
	Outcome string
	From    *time.Time
	To      *time.Time
	Page    int
	Limit   int
}

func (r *PostbackRepo) List(ctx context.Context, f PostbackFilter) ([]domain.PostbackRecord, int, error) {
	where, args := buildPostbackWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM postbacks"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + postbackColumns + " FROM postbacks" + where + " ORDER BY received_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	recs := []domain.PostbackRecord{}
	for rows.Next() {
		rec, err := scanPostback(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, total, rows.Err()
}

type PostbackSummary struct {
	Total         int            `json:"total"`
	LeadsCaptured int            `json:"leads_captured"`
	ByOutcome     map[string]int `json:"by_outcome"`
	ByGroup       map[string]int `json:"by_group"`
}

// GetSummary counts postbacks received in [from, to).
func (r *PostbackRepo) GetSummary(ctx context.Context, from, to time.Time) (*PostbackSummary, error) {
	s := &PostbackSummary{
		ByOutcome: make(map[string]int),
		ByGroup:   make(map[string]int),
	}
	window := []any{from.UTC().Format(timeLayout), to.UTC().Format(timeLayout)}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(lead_captured), 0) FROM postbacks
		WHERE received_at >= ? AND received_at < ?`, window...,
	).Scan(&s.Total, &s.LeadsCaptured); err != nil {
		return nil, err
	}

	if err := scanGroupCount(ctx, r.db, "outcome", window, s.ByOutcome); err != nil {
		return nil, err
	}
	if err := scanGroupCount(ctx, r.db, "campaign_group", window, s.ByGroup); err != nil {
		return nil, err
	}
	delete(s.ByGroup, "")

	return s, nil
}

// --- helpers ---

const postbackColumns = `id, received_at, sub1, sub5, sub6, sum, status, date,
	campaign_group, outcome, lead_captured, reason`

func buildPostbackWhere(f PostbackFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Sub1 != "" {
		clauses = append(clauses, "sub1 = ?")
		args = append(args, f.Sub1)
	}
	if f.Group != "" {
		clauses = append(clauses, "campaign_group = ?")
		args = append(args, f.Group)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.From != nil {
		clauses = append(clauses, "received_at >= ?")
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if f.To != nil {
		clauses = append(clauses, "received_at <= ?")
		args = append(args, f.To.UTC().Format(timeLayout))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanGroupCount(ctx context.Context, db *sql.DB, col string, window []any, m map[string]int) error {
	rows, err := db.QueryContext(ctx,
		"SELECT "+col+", COUNT(*) FROM postbacks WHERE received_at >= ? AND received_at < ? GROUP BY "+col,
		window...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		m[k] = v
	}
	return rows.Err()
}

func scanPostback(rows *sql.Rows) (*domain.PostbackRecord, error) {
	var rec domain.PostbackRecord
	var receivedAt, outcome string

	err := rows.Scan(
		&rec.ID, &receivedAt, &rec.Sub1, &rec.Sub5, &rec.Sub6, &rec.Sum,
		&rec.Status, &rec.Date, &rec.Group, &outcome, &rec.LeadCaptured, &rec.Reason,
	)
	if err != nil {
		return nil, err
	}

	rec.Outcome = domain.Outcome(outcome)
	rec.ReceivedAt, _ = time.Parse(timeLayout, receivedAt)

	return &rec, nil
}
