package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/leads/postback/internal/campaign"
	"github.com/leads/postback/internal/filestore"
	"github.com/leads/postback/internal/ingestion"
	"github.com/leads/postback/internal/metrics"
	"github.com/leads/postback/internal/repository"
)

// Deps are the services the HTTP handlers read from and write to.
type Deps struct {
	Ingestion *ingestion.Service
	Files     *filestore.Store
	Groups    *campaign.Table
	Postbacks *repository.PostbackRepo
	JobRuns   *repository.JobRunRepo
	Location  *time.Location
	Now       func() time.Time
}

// NewRouter creates the Chi router with all routes mounted.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	h := &Handlers{
		ingestion: deps.Ingestion,
		files:     deps.Files,
		groups:    deps.Groups,
		postbacks: deps.Postbacks,
		jobRuns:   deps.JobRuns,
		loc:       deps.Location,
		now:       deps.Now,
		log:       log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(metrics.InstrumentHandler)

	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/", h.Health)

		// Affiliate callbacks.
		r.Get("/postback", h.Postback)
		r.Post("/postback", h.Postback)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/aggregates/{group}", h.GetAggregate)
			r.Get("/income", h.ListIncome)
			r.Get("/leads", h.ListLeads)

			// Audit.
			r.Get("/postbacks", h.ListPostbacks)
			r.Get("/postbacks/summary", h.GetPostbackSummary)

			r.Get("/jobs", h.ListJobRuns)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (h *Handlers) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
