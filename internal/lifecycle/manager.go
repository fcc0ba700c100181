// Package lifecycle rebuilds the in-memory index from the document store and
// expires guest-session documents.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/metrics"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/retrieval"
	"github.com/hyperjump/docqa/internal/storage"
	"github.com/hyperjump/docqa/pkg/utils"
)

// DefaultSessionTTL is how long guest documents are kept.
const DefaultSessionTTL = 24 * time.Hour

// Manager coordinates the engine with the durable store.
type Manager struct {
	engine     *retrieval.Engine
	store      storage.Storage
	sessionTTL time.Duration
	interval   time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewManager returns a manager. Non-positive durations fall back to DefaultSessionTTL
// and a ten-minute sweep interval. A nil engine sweeps the store only.
func NewManager(engine *retrieval.Engine, store storage.Storage, sessionTTL, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Manager{
		engine:     engine,
		store:      store,
		sessionTTL: sessionTTL,
		interval:   interval,
		metrics:    m,
		logger:     utils.OrNop(logger),
		now:        time.Now,
	}
}

// InsertRequest converts a stored document into an engine insert.
func InsertRequest(doc *models.Document) retrieval.InsertRequest {
	return retrieval.InsertRequest{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Content:    doc.Content,
		Visibility: doc.Visibility(),
	}
}

// Rebuild replaces the engine state with docs.
func (m *Manager) Rebuild(ctx context.Context, docs []*models.Document) error {
	return m.engine.Rebuild(ctx, insertRequests(docs))
}

func insertRequests(docs []*models.Document) []retrieval.InsertRequest {
	reqs := make([]retrieval.InsertRequest, len(docs))
	for i, d := range docs {
		reqs[i] = InsertRequest(d)
	}
	return reqs
}

// RebuildFromStore rebuilds the engine from every persisted document in id order.
// Documents indexed while the store is being read and embedded stay searchable.
func (m *Manager) RebuildFromStore(ctx context.Context) error {
	start := time.Now()
	mark := m.engine.Mark()
	docs, err := m.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	if err := m.engine.RebuildSince(ctx, mark, insertRequests(docs)); err != nil {
		return err
	}
	m.logger.Info("index rebuilt from store",
		zap.Int("documents", len(docs)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Expire removes ephemeral documents created before cutoff from the engine and
// returns their ids. The store is left untouched.
func (m *Manager) Expire(ctx context.Context, cutoff time.Time) ([]int64, error) {
	docs, err := m.store.ListEphemeralBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired documents: %w", err)
	}
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	if len(ids) > 0 && m.engine != nil {
		m.engine.Remove(ids...)
	}
	return ids, nil
}

// Sweep expires documents older than the session TTL and deletes them from the store.
// Running it again with nothing newly expired removes nothing.
func (m *Manager) Sweep(ctx context.Context) ([]int64, error) {
	cutoff := m.now().Add(-m.sessionTTL)
	ids, err := m.Expire(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := m.store.DeleteDocuments(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete expired documents: %w", err)
	}
	m.metrics.DocumentsExpired(len(ids))
	m.logger.Info("expired guest documents", zap.Int("count", len(ids)), zap.Time("cutoff", cutoff))
	return ids, nil
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}
