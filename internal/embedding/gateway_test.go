package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyEmbedder struct {
	fail  bool
	calls int
	dims  int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("unreachable")
	}
	v := make([]float32, f.dims)
	v[0] = 1
	return v, nil
}

func (f *flakyEmbedder) Dimensions() int { return f.dims }
func (f *flakyEmbedder) Close() error    { return nil }

func TestGateway_FailureBeforeSuccessUsesConfiguredDimension(t *testing.T) {
	g := NewGateway(&flakyEmbedder{fail: true, dims: 8})
	v, degraded := g.Embed(context.Background(), "x")
	assert.True(t, degraded)
	assert.Len(t, v, DefaultFallbackDimensions)
	for _, x := range v {
		require.Zero(t, x)
	}

	g = NewGateway(&flakyEmbedder{fail: true}, WithFallbackDimensions(16))
	v, degraded = g.Embed(context.Background(), "x")
	assert.True(t, degraded)
	assert.Len(t, v, 16)
}

func TestGateway_FailureAfterSuccessUsesObservedDimension(t *testing.T) {
	emb := &flakyEmbedder{dims: 8}
	g := NewGateway(emb)
	v, degraded := g.Embed(context.Background(), "a")
	require.False(t, degraded)
	require.Len(t, v, 8)

	emb.fail = true
	v, degraded = g.Embed(context.Background(), "b")
	assert.True(t, degraded)
	assert.Len(t, v, 8)
	assert.Equal(t, 8, g.FallbackDimensions())
}

func TestGateway_CachesSuccessesOnly(t *testing.T) {
	emb := &flakyEmbedder{dims: 4}
	g := NewGateway(emb, WithCache(10))
	g.Embed(context.Background(), "same")
	g.Embed(context.Background(), "same")
	assert.Equal(t, 1, emb.calls)

	emb.fail = true
	g.Embed(context.Background(), "other")
	g.Embed(context.Background(), "other")
	assert.Equal(t, 3, emb.calls)
}
