// Package metrics exposes Prometheus instrumentation for indexing, retrieval and
// remote model calls. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docqa"

// Index results recorded by DocumentIndexed.
const (
	ResultIndexed = "indexed"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Search paths recorded by SearchCompleted.
const (
	PathVector  = "vector"
	PathKeyword = "keyword"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	documentsIndexed   *prometheus.CounterVec
	documentsRemoved   prometheus.Counter
	searches           *prometheus.CounterVec
	searchDuration     prometheus.Histogram
	embeddingFailures  prometheus.Counter
	generationFailures prometheus.Counter
	expiredDocuments   prometheus.Counter
	indexSlots         prometheus.Gauge
	registryEntries    prometheus.Gauge
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Documents submitted for indexing, by result.",
		}, []string{"result"}),
		documentsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_removed_total",
			Help:      "Registry entries removed.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches executed, by candidate path.",
		}, []string{"path"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency including query embedding.",
			Buckets:   prometheus.DefBuckets,
		}),
		embeddingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Embedding calls that fell back to a zero vector.",
		}),
		generationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Answer generation calls that failed.",
		}),
		expiredDocuments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_documents_total",
			Help:      "Ephemeral documents expired by the lifecycle sweep.",
		}),
		indexSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_slots",
			Help:      "Slots appended to the similarity index, including removed ones.",
		}),
		registryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Live entries in the document registry.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsIndexed,
		m.documentsRemoved,
		m.searches,
		m.searchDuration,
		m.embeddingFailures,
		m.generationFailures,
		m.expiredDocuments,
		m.indexSlots,
		m.registryEntries,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format. A nil Metrics serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) DocumentIndexed(result string) {
	if m == nil {
		return
	}
	m.documentsIndexed.WithLabelValues(result).Inc()
}

func (m *Metrics) DocumentsRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.documentsRemoved.Add(float64(n))
}

func (m *Metrics) SearchCompleted(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(path).Inc()
	m.searchDuration.Observe(d.Seconds())
}

func (m *Metrics) EmbeddingFailed() {
	if m == nil {
		return
	}
	m.embeddingFailures.Inc()
}

func (m *Metrics) GenerationFailed() {
	if m == nil {
		return
	}
	m.generationFailures.Inc()
}

func (m *Metrics) DocumentsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredDocuments.Add(float64(n))
}

// SetIndexState records the current slot and live entry counts.
func (m *Metrics) SetIndexState(slots, entries int) {
	if m == nil {
		return
	}
	m.indexSlots.Set(float64(slots))
	m.registryEntries.Set(float64(entries))
}
