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
)

func TestObserveResolution(t *testing.T) {
	m := New()
	m.ObserveResolution("local")
	m.ObserveResolution("local")
	m.ObserveResolution("ai")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("ai")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.resolutions.WithLabelValues("none")))
}

func TestObserveIngest(t *testing.T) {
	m := New()
	m.ObserveIngest("FOOD", "fresh", 12)
	m.ObserveIngest("FOOD", "cache", 10)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingests.WithLabelValues("FOOD", "fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingests.WithLabelValues("FOOD", "cache")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.ingestedRows.WithLabelValues("FOOD")))
}

func TestSnapshotEntries(t *testing.T) {
	m := New()
	m.SetSnapshotEntries(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.snapshotSize))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveResolution("none")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `emissions_resolutions_total{tier="none"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))

	require.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))

	// Touching the expected label set must not create a second series.
	m.httpDuration.WithLabelValues("GET", "/items/{id}", "418")
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}
