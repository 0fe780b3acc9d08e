package memoryDB

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
)

// Store keeps every document's visible chunks in one slice per document.
// Search is brute force, which is fine for tests and small corpora.
type Store struct {
	mu        sync.RWMutex
	dimension int
	documents map[string][]documentModel.ChunkRecord
}

func New(dimension int) *Store {
	return &Store{dimension: dimension, documents: make(map[string][]documentModel.ChunkRecord)}
}

func (s *Store) EnsureCollection(context.Context) error { return nil }

// Upsert replaces chunks in place by (document, index) and appends new ones.
// A chunk of another document version supersedes every chunk of the old one.
func (s *Store) Upsert(_ context.Context, chunks []documentModel.ChunkRecord) error {
	if err := s.check(chunks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		current := s.documents[chunk.DocumentID]
		if len(current) > 0 && current[0].DocumentHash != chunk.DocumentHash {
			current = nil
		}
		i := slices.IndexFunc(current, func(c documentModel.ChunkRecord) bool {
			return c.ChunkIndex == chunk.ChunkIndex
		})
		if i >= 0 {
			current[i] = chunk
		} else {
			current = append(current, chunk)
		}
		s.documents[chunk.DocumentID] = current
	}
	return nil
}

func (s *Store) ReplaceDocument(_ context.Context, documentID, _ string, chunks []documentModel.ChunkRecord) error {
	if err := s.check(chunks); err != nil {
		return err
	}
	fresh := slices.Clone(chunks)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(fresh) == 0 {
		delete(s.documents, documentID)
		return nil
	}
	s.documents[documentID] = fresh
	return nil
}

func (s *Store) CountDocument(_ context.Context, documentID, documentHash string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.documents[documentID] {
		if c.DocumentHash == documentHash {
			n++
		}
	}
	return n, nil
}

func (s *Store) Search(_ context.Context, query []float32, k int) ([]documentModel.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	if s.dimension > 0 && len(query) != s.dimension {
		return nil, errorModel.Storage("search", fmt.Errorf("query has %d dimensions, store has %d", len(query), s.dimension))
	}

	s.mu.RLock()
	var hits []documentModel.ScoredChunk
	for _, chunks := range s.documents {
		for _, c := range chunks {
			hits = append(hits, documentModel.ScoredChunk{Chunk: c, Score: vectorDB.Cosine(query, c.Embedding)})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Chunk.DocumentID != hits[j].Chunk.DocumentID {
			return hits[i].Chunk.DocumentID < hits[j].Chunk.DocumentID
		}
		return hits[i].Chunk.ChunkIndex < hits[j].Chunk.ChunkIndex
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Store) check(chunks []documentModel.ChunkRecord) error {
	if s.dimension == 0 {
		return nil
	}
	for _, c := range chunks {
		if len(c.Embedding) != s.dimension {
			return errorModel.Storage("upsert", fmt.Errorf("chunk %d of %s has %d dimensions, store has %d",
				c.ChunkIndex, c.DocumentID, len(c.Embedding), s.dimension))
		}
	}
	return nil
}
