package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingService maps known prompts to fixed vectors so similarity
// tests are deterministic; unknown prompts get a far-away vector.
type fakeEmbeddingService struct {
	vectors map[string][]float32
}

func (f *fakeEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func newTestSemanticCache(threshold float32) (*SemanticCache, *fakeEmbeddingService) {
	embed := &fakeEmbeddingService{vectors: map[string][]float32{
		"what is the capital of France?": {1, 0, 0},
		"what's the capital of France?":  {0.99, 0.01, 0},
		"how do I bake bread?":           {0, 1, 0},
	}}
	cfg := SemanticConfig{MaxEntries: 10, SimilarityThreshold: threshold, TTL: time.Hour, Embeddings: embed}
	return NewSemanticCache(cfg), embed
}

func TestSemanticCache_ExactHit(t *testing.T) {
	c, _ := newTestSemanticCache(0.9)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "what is the capital of France?", "Paris"))

	value, found, similarity := c.Get(ctx, "what is the capital of France?")
	assert.True(t, found)
	assert.Equal(t, "Paris", value)
	assert.Equal(t, float32(1.0), similarity)
}

func TestSemanticCache_SemanticHitOnNearDuplicatePrompt(t *testing.T) {
	c, _ := newTestSemanticCache(0.9)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "what is the capital of France?", "Paris"))

	value, found, similarity := c.Get(ctx, "what's the capital of France?")
	assert.True(t, found)
	assert.Equal(t, "Paris", value)
	assert.Greater(t, similarity, float32(0.9))
}

func TestSemanticCache_MissBelowSimilarityThreshold(t *testing.T) {
	c, _ := newTestSemanticCache(0.9)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "what is the capital of France?", "Paris"))

	_, found, _ := c.Get(ctx, "how do I bake bread?")
	assert.False(t, found)
}

func TestSemanticCache_StatsCountsBothLayers(t *testing.T) {
	c, _ := newTestSemanticCache(0.9)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "what is the capital of France?", "Paris"))
	c.Get(ctx, "what is the capital of France?") // exact hit
	c.Get(ctx, "what's the capital of France?")  // semantic hit
	c.Get(ctx, "how do I bake bread?")            // semantic miss

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.ExactHits)
	assert.Equal(t, int64(2), stats.ExactMisses)
	assert.Equal(t, int64(1), stats.SemanticHits)
	assert.Equal(t, int64(1), stats.SemanticMisses)
	assert.Equal(t, 1, stats.SemanticSize)
}

func TestSemanticCache_MaxEntriesEvictsOldest(t *testing.T) {
	embed := &fakeEmbeddingService{vectors: map[string][]float32{}}
	cfg := SemanticConfig{MaxEntries: 1, SimilarityThreshold: 0.99, TTL: time.Hour, Embeddings: embed}
	c := NewSemanticCache(cfg)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "first prompt", "a"))
	require.NoError(t, c.Set(ctx, "second prompt", "b"))

	assert.Equal(t, 1, c.Stats().SemanticSize)
}
