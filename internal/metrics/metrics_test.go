package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(postbacks.WithLabelValues("aggregated"))
	RecordPostback("aggregated")
	assert.Equal(t, before+1, testutil.ToFloat64(postbacks.WithLabelValues("aggregated")))

	before = testutil.ToFloat64(jobRuns.WithLabelValues("upload", "failed"))
	RecordJobRun("upload", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(jobRuns.WithLabelValues("upload", "failed")))
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/v1/aggregates/{group}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler())

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/aggregates/{group}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/aggregates/krolik", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/aggregates/{group}", "418"))
	assert.Equal(t, before+1, after)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "postback_http_requests_total"))
}
