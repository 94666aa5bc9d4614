package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/leads/postback/internal/campaign"
	"github.com/leads/postback/internal/domain"
	"github.com/leads/postback/internal/filestore"
	"github.com/leads/postback/internal/ingestion"
	"github.com/leads/postback/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	ingestion *ingestion.Service
	files     *filestore.Store
	groups    *campaign.Table
	postbacks *repository.PostbackRepo
	jobRuns   *repository.JobRunRepo
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02", s, h.loc)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// --- Postback ---

// Postback accepts an affiliate callback. The sender always gets an ok
// response; what happened to the postback is only visible in the logs and
// the audit trail.
func (h *Handlers) Postback(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if err := r.ParseForm(); err != nil {
		h.log.Warn().Err(err).Msg("Malformed postback body, using query string only")
	} else {
		values = r.Form
	}

	pb := domain.Postback{
		Sub1:   values.Get("sub1"),
		Sub5:   values.Get("sub5"),
		Sub6:   values.Get("sub6"),
		Sum:    values.Get("sum"),
		Status: values.Get("status"),
		Date:   values.Get("date"),
	}

	// The postback is processed to completion even if the sender hangs up.
	h.ingestion.Process(context.WithoutCancel(r.Context()), pb)

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- GetAggregate ---

func (h *Handlers) GetAggregate(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Lookup(chi.URLParam(r, "group"))
	if errors.Is(err, campaign.ErrUnknownGroup) {
		h.writeError(w, http.StatusNotFound, "unknown campaign group")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	blocks, err := h.files.ReadAggregate(group.File)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if date := r.URL.Query().Get("date"); date != "" {
		filtered := []domain.DayBlock{}
		for _, b := range blocks {
			if b.Date == date {
				filtered = append(filtered, b)
			}
		}
		blocks = filtered
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"group": group.Label,
		"file":  group.File,
		"days":  blocks,
	})
}

// --- ListIncome ---

func (h *Handlers) ListIncome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sub1 := strings.ToLower(q.Get("sub1"))
	from := h.parseTime(q.Get("from"))
	to := h.parseTime(q.Get("to"))

	records, err := h.files.ReadIncome()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filtered := []domain.IncomeRecord{}
	for _, rec := range records {
		if sub1 != "" && strings.ToLower(rec.Sub1) != sub1 {
			continue
		}
		if from != nil || to != nil {
			at, err := time.ParseInLocation(domain.TimestampLayout, rec.Date, h.loc)
			if err != nil {
				continue
			}
			if from != nil && at.Before(*from) {
				continue
			}
			if to != nil && at.After(*to) {
				continue
			}
		}
		filtered = append(filtered, rec)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"income": filtered,
		"count":  len(filtered),
	})
}

// --- ListLeads ---

func (h *Handlers) ListLeads(w http.ResponseWriter, r *http.Request) {
	day := startOfDay(h.now())
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.ParseInLocation(domain.DayLayout, s, h.loc)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "date must be DD.MM.YYYY")
			return
		}
		day = d
	}

	leads, err := h.files.ReadLeads(day)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format(domain.DayLayout),
		"leads": leads,
		"count": len(leads),
	})
}

// --- ListPostbacks ---

func (h *Handlers) ListPostbacks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.PostbackFilter{
		Sub1:    q.Get("sub1"),
		Group:   q.Get("group"),
		Outcome: q.Get("outcome"),
		From:    h.parseTime(q.Get("from")),
		To:      h.parseTime(q.Get("to")),
		Page:    parseIntDefault(q.Get("page"), 1),
		Limit:   parseIntDefault(q.Get("limit"), 50),
	}

	recs, total, err := h.postbacks.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"postbacks": recs,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

// --- GetPostbackSummary ---

// GetPostbackSummary counts postbacks in [from, to). The window defaults to
// the current day.
func (h *Handlers) GetPostbackSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := startOfDay(h.now())
	if t := h.parseTime(q.Get("from")); t != nil {
		from = *t
	}
	to := from.AddDate(0, 0, 1)
	if t := h.parseTime(q.Get("to")); t != nil {
		to = *t
	}

	summary, err := h.postbacks.GetSummary(r.Context(), from, to)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// --- ListJobRuns ---

func (h *Handlers) ListJobRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	runs, err := h.jobRuns.List(r.Context(), q.Get("job"), parseIntDefault(q.Get("limit"), 50))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
	})
}
