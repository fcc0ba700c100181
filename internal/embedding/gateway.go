package embedding

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/metrics"
	"github.com/hyperjump/docqa/pkg/utils"
)

// DefaultFallbackDimensions is the zero-vector length used before any embedding succeeded.
const DefaultFallbackDimensions = 4096

// Gateway wraps an Embedder so that callers always get a vector. Failures are
// logged and replaced by an all-zero vector flagged as degraded.
type Gateway struct {
	embedder     Embedder
	cache        *EmbeddingCache
	fallbackDims int
	lastDims     atomic.Int64
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithCache enables an LRU cache of the given capacity. Capacity 0 disables it.
func WithCache(capacity int) GatewayOption {
	return func(g *Gateway) {
		if capacity > 0 {
			g.cache = NewEmbeddingCache(capacity)
		}
	}
}

// WithFallbackDimensions sets the zero-vector length used before any success.
func WithFallbackDimensions(dims int) GatewayOption {
	return func(g *Gateway) {
		if dims > 0 {
			g.fallbackDims = dims
		}
	}
}

// WithMetrics records embedding failures.
func WithMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = utils.OrNop(l) }
}

// NewGateway returns a gateway around embedder.
func NewGateway(embedder Embedder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		embedder:     embedder,
		fallbackDims: DefaultFallbackDimensions,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Embed returns the embedding of text. It never fails: when the embedder errors
// it returns a zero vector and degraded=true. No retries are made.
func (g *Gateway) Embed(ctx context.Context, text string) (vec []float32, degraded bool) {
	if g.cache != nil {
		if v, ok := g.cache.Get(text); ok {
			return v, false
		}
	}
	v, err := g.embedder.Embed(ctx, text)
	if err == nil && len(v) == 0 {
		err = ErrNoEmbedding
	}
	if err != nil {
		g.metrics.EmbeddingFailed()
		dims := g.FallbackDimensions()
		g.logger.Warn("embedding failed, using zero vector",
			zap.Error(err),
			zap.Int("dimensions", dims),
			zap.Int("text_len", len(text)))
		return make([]float32, dims), true
	}
	g.lastDims.Store(int64(len(v)))
	if g.cache != nil {
		g.cache.Set(text, v)
	}
	return v, false
}

// FallbackDimensions returns the length of the zero vector a failure would produce.
func (g *Gateway) FallbackDimensions() int {
	if d := g.lastDims.Load(); d > 0 {
		return int(d)
	}
	return g.fallbackDims
}

// Close closes the underlying embedder.
func (g *Gateway) Close() error {
	return g.embedder.Close()
}
