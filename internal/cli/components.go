package cli

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/answer"
	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/internal/embedding"
	"github.com/hyperjump/docqa/internal/extract"
	"github.com/hyperjump/docqa/internal/lifecycle"
	"github.com/hyperjump/docqa/internal/metrics"
	"github.com/hyperjump/docqa/internal/retrieval"
	"github.com/hyperjump/docqa/internal/storage"
)

// Embedding providers accepted in embedding.provider.
const (
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Components holds the initialized services shared by the server and offline commands.
type Components struct {
	Storage     storage.Storage
	Gateway     *embedding.Gateway
	Engine      *retrieval.Engine
	Synthesizer *answer.Synthesizer
	Lifecycle   *lifecycle.Manager
	Extractor   *extract.Extractor
	Metrics     *metrics.Metrics
}

// Close releases every component that holds resources.
func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Gateway != nil {
		_ = c.Gateway.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// newEmbedder returns the embedder named by the provider setting.
func newEmbedder(ec config.EmbeddingConfig) (embedding.Embedder, error) {
	switch strings.ToLower(ec.Provider) {
	case "", ProviderOllama:
		return embedding.NewOllamaEmbedder(ec.Host, ec.Model, ec.Timeout), nil
	case ProviderMock:
		return embedding.NewMockEmbedder(ec.FallbackDimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	if cfg.Metrics.EnabledOrDefault() {
		c.Metrics = metrics.New()
	}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Gateway = embedding.NewGateway(embedder,
		embedding.WithCache(cfg.Embedding.CacheSize),
		embedding.WithFallbackDimensions(cfg.Embedding.FallbackDimensions),
		embedding.WithMetrics(c.Metrics),
		embedding.WithLogger(logger),
	)

	c.Engine, err = retrieval.New(c.Gateway, retrieval.Options{
		CandidateLimit:  cfg.Retrieval.CandidateLimit,
		SkipDegraded:    cfg.Embedding.SkipDegraded,
		KeywordFallback: cfg.Retrieval.KeywordFallbackOrDefault(),
		RebuildWorkers:  cfg.Retrieval.RebuildWorkers,
		Metrics:         c.Metrics,
		Logger:          logger,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize retrieval engine: %w", err)
	}

	generator := answer.NewOllamaGenerator(cfg.Generation.Host, cfg.Generation.Model, cfg.Generation.Timeout)
	c.Synthesizer = answer.NewSynthesizer(generator, cfg.Generation.MaxDocumentChars, c.Metrics, logger)
	c.Lifecycle = lifecycle.NewManager(c.Engine, store, cfg.Lifecycle.SessionTTL, cfg.Lifecycle.SweepInterval, c.Metrics, logger)
	c.Extractor = extract.NewExtractor(cfg.Server.MaxUploadBytes)

	logger.Info("components initialized",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("storage_path", cfg.Storage.Path()),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
	)
	return c, nil
}
