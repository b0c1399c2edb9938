package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipnetic/clipnetic/internal/types"
	"github.com/clipnetic/clipnetic/internal/usecase"
)

func TestClipFinished(t *testing.T) {
	m := New()
	m.ClipFinished(types.ClipDone, usecase.StageDone)
	m.ClipFinished(types.ClipDone, usecase.StageDone)
	m.ClipFinished(types.ClipAborted, usecase.StageTracked)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.clipsTotal.WithLabelValues("done", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clipsTotal.WithLabelValues("aborted", "tracked")))
}

func TestJobStarted(t *testing.T) {
	m := New()
	finish := m.JobStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeJobs))

	finish("ok")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeJobs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.jobDuration))
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/bad", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadRequest) })

	for _, p := range []string{"/ok", "/bad", "/bad"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.errorsTotal))
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncBusy()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "clipnetic_busy_rejections_total 1")
}
