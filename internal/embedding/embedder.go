// Package embedding turns text into fixed-length vectors through a remote model,
// with an offline mock, an LRU cache and a failure-absorbing gateway.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the vector length, or 0 when it is not known yet.
	Dimensions() int
	Close() error
}
