// Package keyword provides an in-memory Bleve full-text index over registry slots.
// It serves as the retrieval path when a query cannot be embedded.
package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// DefaultTitleBoost multiplies title-field scores when merged with content scores.
const DefaultTitleBoost = 2.0

// Result is a single keyword hit keyed by slot.
type Result struct {
	Slot  int
	Score float64
}

type document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Index is a Bleve index kept only in memory. It is rebuilt together with the
// similarity index and never persisted.
type Index struct {
	index      bleve.Index
	titleBoost float64
}

// New creates an empty in-memory index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: idx, titleBoost: DefaultTitleBoost}, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer lowercases and tokenizes without stemming so exact words match.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("content", text)
	im.DefaultMapping = docMapping
	return im
}

// Index adds or replaces the document stored under slot.
func (x *Index) Index(ctx context.Context, slot int, title, content string) error {
	if err := x.index.Index(strconv.Itoa(slot), document{Title: title, Content: content}); err != nil {
		return fmt.Errorf("keyword index slot %d: %w", slot, err)
	}
	return nil
}

// Delete removes the given slots in one batch.
func (x *Index) Delete(slots ...int) error {
	if len(slots) == 0 {
		return nil
	}
	batch := x.index.NewBatch()
	for _, s := range slots {
		batch.Delete(strconv.Itoa(s))
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("keyword delete: %w", err)
	}
	return nil
}

// Search runs separate title and content match queries and merges them additively,
// title scores multiplied by the title boost. Results are ordered by descending score,
// ties by ascending slot, and capped at limit.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	scores := make(map[int]float64)
	for _, field := range []string{"title", "content"} {
		q := bleve.NewMatchQuery(query)
		q.SetField(field)
		req := bleve.NewSearchRequestOptions(q, limit, 0, false)
		res, err := x.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("Bleve %s search failed: %w", field, err)
		}
		boost := 1.0
		if field == "title" {
			boost = x.titleBoost
		}
		for _, hit := range res.Hits {
			slot, err := strconv.Atoi(hit.ID)
			if err != nil {
				continue
			}
			scores[slot] += hit.Score * boost
		}
	}

	out := make([]*Result, 0, len(scores))
	for slot, score := range scores {
		out = append(out, &Result{Slot: slot, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Slot < out[j].Slot
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DocCount returns the number of indexed slots.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the Bleve index.
func (x *Index) Close() error {
	return x.index.Close()
}
