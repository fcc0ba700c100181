// Package retrieval combines the similarity index, the document registry and the
// keyword index behind a single lock, and answers scoped similarity searches.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/docqa/internal/embedding"
	"github.com/hyperjump/docqa/internal/keyword"
	"github.com/hyperjump/docqa/internal/metrics"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/registry"
	"github.com/hyperjump/docqa/internal/vector"
	"github.com/hyperjump/docqa/pkg/utils"
)

// Options configures an Engine.
type Options struct {
	// CandidateLimit is the minimum number of nearest slots fetched before scope
	// filtering. 0 fetches every slot so a scoped search can never miss visible documents.
	CandidateLimit int
	// SkipDegraded drops documents whose embedding failed instead of indexing a zero vector.
	SkipDegraded bool
	// KeywordFallback answers searches from the keyword index when the query embedding fails.
	KeywordFallback bool
	// RebuildWorkers bounds concurrent embedding calls during Rebuild.
	RebuildWorkers int
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// InsertRequest is a document to add to the index.
type InsertRequest struct {
	DocumentID int64
	Title      string
	Content    string
	Visibility models.Visibility
}

// Result is a search hit. Score is the Euclidean distance on the vector path
// (lower is closer) and the keyword relevance on the keyword path (higher is better).
type Result struct {
	registry.Entry
	Score float64
}

// Stats describes the index state.
type Stats struct {
	Slots      int `json:"slots"`
	Entries    int `json:"entries"`
	Dimensions int `json:"dimensions"`
}

// Engine owns the index state. One RWMutex covers the similarity index, the registry
// and the keyword index; embedding calls are always made outside it.
type Engine struct {
	mu       sync.RWMutex
	index    *vector.Index
	registry *registry.Registry
	keywords *keyword.Index

	// gen counts recorded entries; insertedAt holds the gen each live slot was recorded at.
	gen        uint64
	insertedAt map[vector.Slot]uint64
	// removed holds every document id passed to Remove. Store ids are never reused,
	// so an insert that finishes embedding after its delete is dropped.
	removed map[int64]struct{}

	gateway        *embedding.Gateway
	candidateLimit int
	skipDegraded   bool
	workers        int
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// New creates an empty engine.
func New(gateway *embedding.Gateway, opts Options) (*Engine, error) {
	e := &Engine{
		index:          vector.NewIndex(),
		registry:       registry.New(),
		insertedAt:     make(map[vector.Slot]uint64),
		removed:        make(map[int64]struct{}),
		gateway:        gateway,
		candidateLimit: opts.CandidateLimit,
		skipDegraded:   opts.SkipDegraded,
		workers:        opts.RebuildWorkers,
		metrics:        opts.Metrics,
		logger:         utils.OrNop(opts.Logger),
	}
	if e.workers <= 0 {
		e.workers = 4
	}
	if opts.KeywordFallback {
		kw, err := keyword.New()
		if err != nil {
			return nil, err
		}
		e.keywords = kw
	}
	return e, nil
}

// Insert embeds the document and records it. Blank content is skipped with a warning.
func (e *Engine) Insert(ctx context.Context, req InsertRequest) error {
	if strings.TrimSpace(req.Content) == "" {
		e.logger.Warn("skipping document with empty content", zap.Int64("doc_id", req.DocumentID))
		e.metrics.DocumentIndexed(metrics.ResultSkipped)
		return nil
	}
	vec, degraded := e.gateway.Embed(ctx, req.Content)

	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.insertLocked(ctx, req, vec, degraded)
	e.metrics.SetIndexState(e.index.Size(), e.registry.Len())
	return err
}

func (e *Engine) insertLocked(ctx context.Context, req InsertRequest, vec []float32, degraded bool) error {
	log := e.logger.With(zap.Int64("doc_id", req.DocumentID))
	if _, gone := e.removed[req.DocumentID]; gone {
		log.Debug("document removed while indexing, not recorded")
		e.metrics.DocumentIndexed(metrics.ResultSkipped)
		return nil
	}
	if degraded {
		if e.skipDegraded {
			log.Warn("embedding unavailable, document not indexed")
			e.metrics.DocumentIndexed(metrics.ResultSkipped)
			return nil
		}
		dims := e.index.Dimensions()
		if dims == 0 {
			log.Warn("embedding unavailable and index dimension not established, document not indexed")
			e.metrics.DocumentIndexed(metrics.ResultSkipped)
			return nil
		}
		vec = make([]float32, dims)
		log.Warn("indexing zero vector for document")
	}

	slot, err := e.index.Append(vec)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			log.Error("embedding dimension does not match index", zap.Error(err))
		}
		e.metrics.DocumentIndexed(metrics.ResultFailed)
		return fmt.Errorf("index document %d: %w", req.DocumentID, err)
	}
	entry := registry.Entry{
		Slot:       slot,
		DocumentID: req.DocumentID,
		Title:      req.Title,
		Content:    req.Content,
		Visibility: req.Visibility,
	}
	if err := e.registry.Record(entry); err != nil {
		log.Error("slot appended but not recorded", zap.Int("slot", int(slot)), zap.Error(err))
		e.metrics.DocumentIndexed(metrics.ResultFailed)
		return fmt.Errorf("record document %d: %w", req.DocumentID, err)
	}
	e.gen++
	e.insertedAt[slot] = e.gen
	if e.keywords != nil {
		if err := e.keywords.Index(ctx, int(slot), req.Title, req.Content); err != nil {
			log.Warn("keyword indexing failed", zap.Error(err))
		}
	}
	e.metrics.DocumentIndexed(metrics.ResultIndexed)
	log.Debug("document indexed", zap.Int("slot", int(slot)))
	return nil
}

// Remove drops every entry of the given documents and returns how many entries were removed.
// The vector slots remain allocated. Unknown ids are ignored.
func (e *Engine) Remove(docIDs ...int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for _, id := range docIDs {
		e.removed[id] = struct{}{}
		slots := e.registry.Remove(id)
		for _, s := range slots {
			delete(e.insertedAt, s)
		}
		removed += len(slots)
		if e.keywords != nil && len(slots) > 0 {
			ints := make([]int, len(slots))
			for i, s := range slots {
				ints[i] = int(s)
			}
			if err := e.keywords.Delete(ints...); err != nil {
				e.logger.Warn("keyword delete failed", zap.Int64("doc_id", id), zap.Error(err))
			}
		}
	}
	e.metrics.DocumentsRemoved(removed)
	e.metrics.SetIndexState(e.index.Size(), e.registry.Len())
	return removed
}

// Search returns up to k documents visible to scope, nearest first. An empty index,
// a scope with nothing visible or no surviving candidates all yield an empty result.
func (e *Engine) Search(ctx context.Context, query string, scope models.Scope, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	start := time.Now()
	vec, degraded := e.gateway.Embed(ctx, query)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index.Size() == 0 {
		return nil, nil
	}
	visible := e.registry.VisibleSlots(scope)
	if len(visible) == 0 {
		return nil, nil
	}

	if degraded && e.keywords != nil {
		results, err := e.keywordSearchLocked(ctx, query, visible, k)
		e.metrics.SearchCompleted(metrics.PathKeyword, time.Since(start))
		return results, err
	}
	if degraded && len(vec) != e.index.Dimensions() {
		vec = make([]float32, e.index.Dimensions())
	}

	candidates := e.index.Size()
	if e.candidateLimit > 0 {
		candidates = max(k, e.candidateLimit)
	}
	hits, err := e.index.Search(vec, candidates)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			e.logger.Error("query embedding dimension does not match index", zap.Error(err))
		}
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]Result, 0, k)
	for _, h := range hits {
		if _, ok := visible[h.Slot]; !ok {
			continue
		}
		entry, ok := e.registry.Get(h.Slot)
		if !ok {
			continue
		}
		results = append(results, Result{Entry: entry, Score: h.Distance})
		if len(results) == k {
			break
		}
	}
	e.metrics.SearchCompleted(metrics.PathVector, time.Since(start))
	return results, nil
}

func (e *Engine) keywordSearchLocked(ctx context.Context, query string, visible map[vector.Slot]struct{}, k int) ([]Result, error) {
	hits, err := e.keywords.Search(ctx, query, e.index.Size())
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	results := make([]Result, 0, k)
	for _, h := range hits {
		slot := vector.Slot(h.Slot)
		if _, ok := visible[slot]; !ok {
			continue
		}
		entry, ok := e.registry.Get(slot)
		if !ok {
			continue
		}
		results = append(results, Result{Entry: entry, Score: h.Score})
		if len(results) == k {
			break
		}
	}
	e.logger.Debug("keyword fallback search", zap.Int("results", len(results)))
	return results, nil
}

// HasDocuments reports whether scope can see any indexed document.
func (e *Engine) HasDocuments(scope models.Scope) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.HasVisible(scope)
}

// Mark returns the current insert generation. Entries recorded after it are kept by
// RebuildSince when their documents are missing from the rebuild input.
func (e *Engine) Mark() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gen
}

// Rebuild replaces the whole index state with docs, inserted in order.
func (e *Engine) Rebuild(ctx context.Context, docs []InsertRequest) error {
	return e.RebuildSince(ctx, e.Mark(), docs)
}

// RebuildSince replaces the index state with docs, which must be a snapshot taken
// after mark. All embeddings are computed first without holding the lock; the
// discard-and-replay is then a single exclusive section, so readers see either the
// old or the new state. Entries recorded after mark whose documents are not in docs
// are carried over with their vectors, after the replayed documents. Removed
// document ids are never replayed.
func (e *Engine) RebuildSince(ctx context.Context, mark uint64, docs []InsertRequest) error {
	type embedded struct {
		vec      []float32
		degraded bool
		blank    bool
	}
	prepared := make([]embedded, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range docs {
		if strings.TrimSpace(docs[i].Content) == "" {
			prepared[i].blank = true
			continue
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, degraded := e.gateway.Embed(gctx, docs[i].Content)
			prepared[i] = embedded{vec: vec, degraded: degraded}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rebuild aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rebuild aborted: %w", err)
	}

	var keywords *keyword.Index
	if e.keywords != nil {
		kw, err := keyword.New()
		if err != nil {
			return fmt.Errorf("rebuild aborted: %w", err)
		}
		keywords = kw
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	carried := e.carryOverLocked(mark, docs)

	oldKeywords := e.keywords
	e.index = vector.NewIndex()
	e.registry.Reset()
	e.insertedAt = make(map[vector.Slot]uint64)
	e.keywords = keywords
	if oldKeywords != nil {
		if err := oldKeywords.Close(); err != nil {
			e.logger.Warn("closing previous keyword index failed", zap.Error(err))
		}
	}

	var errs []error
	for i, doc := range docs {
		if prepared[i].blank {
			e.logger.Warn("skipping document with empty content", zap.Int64("doc_id", doc.DocumentID))
			e.metrics.DocumentIndexed(metrics.ResultSkipped)
			continue
		}
		if err := e.insertLocked(ctx, doc, prepared[i].vec, prepared[i].degraded); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range carried {
		if err := e.insertLocked(ctx, c.req, c.vec, false); err != nil {
			errs = append(errs, err)
		}
	}
	e.metrics.SetIndexState(e.index.Size(), e.registry.Len())
	e.logger.Info("index rebuilt",
		zap.Int("documents", len(docs)),
		zap.Int("carried", len(carried)),
		zap.Int("entries", e.registry.Len()),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

type carriedEntry struct {
	req InsertRequest
	vec []float32
}

// carryOverLocked collects, in slot order, the live entries recorded after mark
// whose documents are absent from docs.
func (e *Engine) carryOverLocked(mark uint64, docs []InsertRequest) []carriedEntry {
	inDocs := make(map[int64]struct{}, len(docs))
	for _, d := range docs {
		inDocs[d.DocumentID] = struct{}{}
	}
	var out []carriedEntry
	for slot := vector.Slot(0); int(slot) < e.index.Size(); slot++ {
		gen, ok := e.insertedAt[slot]
		if !ok || gen <= mark {
			continue
		}
		entry, ok := e.registry.Get(slot)
		if !ok {
			continue
		}
		if _, ok := inDocs[entry.DocumentID]; ok {
			continue
		}
		vec, ok := e.index.Vector(slot)
		if !ok {
			continue
		}
		out = append(out, carriedEntry{
			req: InsertRequest{
				DocumentID: entry.DocumentID,
				Title:      entry.Title,
				Content:    entry.Content,
				Visibility: entry.Visibility,
			},
			vec: vec,
		})
	}
	return out
}

// Stats returns slot, entry and dimension counts.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Slots:      e.index.Size(),
		Entries:    e.registry.Len(),
		Dimensions: e.index.Dimensions(),
	}
}

// Close releases the keyword index.
func (e *Engine) Close() error {
	if e.keywords != nil {
		return e.keywords.Close()
	}
	return nil
}
