package cache

import (
	"context"
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// EmbeddingService generates vector embeddings for cache keys that should
// match on semantic similarity rather than exact text.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticConfig configures the semantic layer that sits in front of an
// exact-match Cache.
type SemanticConfig struct {
	MaxEntries          int
	SimilarityThreshold float32
	TTL                 time.Duration
	Embeddings          EmbeddingService
}

// DefaultSemanticConfig mirrors the teacher's production tuning.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{MaxEntries: 1000, SimilarityThreshold: 0.95, TTL: 24 * time.Hour}
}

type semanticEntry struct {
	key       string
	prompt    string
	embedding []float32
	value     string
	expiresAt time.Time
	elem      *list.Element
}

// SemanticStats is a snapshot of lookup outcomes across both layers.
type SemanticStats struct {
	ExactHits      int64
	ExactMisses    int64
	SemanticHits   int64
	SemanticMisses int64
	SemanticSize   int
}

// SemanticCache layers near-duplicate-prompt matching on top of an
// exact-key TTL cache: an exact SHA256 hit returns immediately, otherwise
// every live semantic entry is scored by cosine similarity against the
// query's embedding and the best match above SimilarityThreshold wins.
// Intended for the llm_call step executor, so repeated or paraphrased
// prompts don't re-invoke a model.
type SemanticCache struct {
	cfg   SemanticConfig
	exact *Cache[string]

	mu      sync.RWMutex
	entries map[string]*semanticEntry
	order   *list.List

	statsMu sync.Mutex
	stats   SemanticStats
}

// NewSemanticCache creates a semantic cache. cfg.Embeddings must be set.
func NewSemanticCache(cfg SemanticConfig) *SemanticCache {
	return &SemanticCache{
		cfg:     cfg,
		exact:   New[string](cfg.MaxEntries, cfg.TTL, LRU),
		entries: make(map[string]*semanticEntry),
		order:   list.New(),
	}
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Get looks up prompt first by exact hash, then by semantic similarity.
// It returns the cached value, whether it was found, and the similarity
// score (1.0 for an exact hit).
func (c *SemanticCache) Get(ctx context.Context, prompt string) (value string, found bool, similarity float32) {
	key := hashPrompt(prompt)
	if v, ok := c.exact.Get(key); ok {
		c.recordExact(true)
		return v, true, 1.0
	}
	c.recordExact(false)

	embedding, err := c.cfg.Embeddings.Embed(ctx, prompt)
	if err != nil {
		return "", false, 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *semanticEntry
	var bestScore float32
	now := time.Now()
	for _, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		score := cosineSimilarity(embedding, e.embedding)
		if score > bestScore {
			bestScore = score
			best = e
		}
	}

	if best != nil && bestScore >= c.cfg.SimilarityThreshold {
		c.recordSemantic(true)
		return best.value, true, bestScore
	}
	c.recordSemantic(false)
	return "", false, bestScore
}

// Set stores prompt/value in both the exact and semantic layers.
func (c *SemanticCache) Set(ctx context.Context, prompt, value string) error {
	key := hashPrompt(prompt)
	c.exact.Set(key, value)

	embedding, err := c.cfg.Embeddings.Embed(ctx, prompt)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.order.MoveToFront(existing.elem)
		existing.value = value
		existing.embedding = embedding
		existing.expiresAt = c.expiryFor()
		return nil
	}

	e := &semanticEntry{key: key, prompt: prompt, embedding: embedding, value: value, expiresAt: c.expiryFor()}
	e.elem = c.order.PushFront(key)
	c.entries[key] = e

	if c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries {
		back := c.order.Back()
		if back != nil {
			delete(c.entries, back.Value.(string))
			c.order.Remove(back)
		}
	}
	return nil
}

func (c *SemanticCache) expiryFor() time.Time {
	if c.cfg.TTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.TTL)
}

func (c *SemanticCache) recordExact(hit bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if hit {
		c.stats.ExactHits++
	} else {
		c.stats.ExactMisses++
	}
}

func (c *SemanticCache) recordSemantic(hit bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if hit {
		c.stats.SemanticHits++
	} else {
		c.stats.SemanticMisses++
	}
}

// Stats returns a snapshot of cumulative lookup outcomes.
func (c *SemanticCache) Stats() SemanticStats {
	c.statsMu.Lock()
	snap := c.stats
	c.statsMu.Unlock()

	c.mu.RLock()
	snap.SemanticSize = len(c.entries)
	c.mu.RUnlock()
	return snap
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
