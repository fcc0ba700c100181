// Package vector provides an append-only, exact nearest-neighbour index over
// fixed-dimension embeddings.
package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Slot is the 0-based position a vector was appended at. Slots are never reused.
type Slot int

// Hit is a single search result.
type Hit struct {
	Slot     Slot
	Distance float64
}

// Index is a brute-force Euclidean index. Vectors are only ever appended; removal is
// the caller's concern. Index is not safe for concurrent use.
type Index struct {
	dimensions int
	vectors    [][]float32
}

// NewIndex returns an empty index. The dimension is fixed by the first Append.
func NewIndex() *Index {
	return &Index{}
}

// Append stores a copy of vec and returns its slot.
func (x *Index) Append(vec []float32) (Slot, error) {
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if x.dimensions == 0 {
		x.dimensions = len(vec)
	} else if len(vec) != x.dimensions {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), x.dimensions)
	}
	v := make([]float32, len(vec))
	copy(v, vec)
	slot := Slot(len(x.vectors))
	x.vectors = append(x.vectors, v)
	return slot, nil
}

// Search returns up to k hits ordered by ascending distance, ties by ascending slot.
// k larger than Size is clamped. An empty index or k <= 0 yields no hits.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(x.vectors) == 0 {
		return nil, nil
	}
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), x.dimensions)
	}
	hits := make([]Hit, len(x.vectors))
	for i, vec := range x.vectors {
		hits[i] = Hit{Slot: Slot(i), Distance: L2Distance(query, vec)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Slot < hits[j].Slot
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Vector returns a copy of the vector stored at slot.
func (x *Index) Vector(slot Slot) ([]float32, bool) {
	if slot < 0 || int(slot) >= len(x.vectors) {
		return nil, false
	}
	v := make([]float32, len(x.vectors[slot]))
	copy(v, x.vectors[slot])
	return v, true
}

// Size returns the number of slots ever appended.
func (x *Index) Size() int {
	return len(x.vectors)
}

// Dimensions returns the established dimension, or 0 before the first append.
func (x *Index) Dimensions() int {
	return x.dimensions
}

// L2Distance returns the Euclidean distance between two equal-length vectors.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
