package memoryDB

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
)

type cacheEntry struct {
	vector []float32
	answer vectorDB.CachedAnswer
}

type Cache struct {
	mu      sync.RWMutex
	cutoff  float32
	entries []cacheEntry
}

func NewCache(cutoff float32) *Cache {
	if cutoff <= 0 {
		cutoff = config.CacheSimilarityCutoff
	}
	return &Cache{cutoff: cutoff}
}

func (c *Cache) Lookup(_ context.Context, query []float32) (vectorDB.CachedAnswer, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := -1
	var bestScore float32
	for i, e := range c.entries {
		if score := vectorDB.Cosine(query, e.vector); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < c.cutoff {
		return vectorDB.CachedAnswer{}, false, nil
	}
	hit := c.entries[best].answer
	hit.Score = bestScore
	return hit, true, nil
}

func (c *Cache) Save(_ context.Context, vector []float32, answer vectorDB.CachedAnswer) error {
	if answer.SavedAt.IsZero() {
		answer.SavedAt = time.Now().UTC()
	}
	c.mu.Lock()
	c.entries = append(c.entries, cacheEntry{vector: vector, answer: answer})
	c.mu.Unlock()
	return nil
}

func (c *Cache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	return nil
}
