package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DocumentIndexed(ResultIndexed)
		m.DocumentsRemoved(3)
		m.SearchCompleted(PathVector, time.Millisecond)
		m.EmbeddingFailed()
		m.GenerationFailed()
		m.DocumentsExpired(2)
		m.SetIndexState(1, 1)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.DocumentIndexed(ResultIndexed)
	m.DocumentIndexed(ResultIndexed)
	m.DocumentIndexed(ResultSkipped)
	m.DocumentsRemoved(2)
	m.DocumentsRemoved(0)
	m.EmbeddingFailed()
	m.SetIndexState(5, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documentsIndexed.WithLabelValues(ResultIndexed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsIndexed.WithLabelValues(ResultSkipped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.documentsRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingFailures))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.indexSlots))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.registryEntries))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SearchCompleted(PathKeyword, 10*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `docqa_searches_total{path="keyword"} 1`))
	assert.True(t, strings.Contains(string(body), "docqa_search_duration_seconds"))
}
