package rag_test

import (
	"context"
	"sync"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
)

// MockVectorDB implements vectorDB.Store
type MockVectorDB struct {
	OnSearch          func(ctx context.Context, vector []float32, k int) ([]documentModel.ScoredChunk, error)
	OnReplaceDocument func(ctx context.Context, documentID, documentHash string, chunks []documentModel.ChunkRecord) error
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context) error { return nil }

func (m *MockVectorDB) Upsert(ctx context.Context, chunks []documentModel.ChunkRecord) error {
	return nil
}

func (m *MockVectorDB) ReplaceDocument(ctx context.Context, documentID, documentHash string, chunks []documentModel.ChunkRecord) error {
	if m.OnReplaceDocument != nil {
		return m.OnReplaceDocument(ctx, documentID, documentHash, chunks)
	}
	return nil
}

func (m *MockVectorDB) CountDocument(ctx context.Context, documentID, documentHash string) (int, error) {
	return 0, nil
}

func (m *MockVectorDB) Search(ctx context.Context, v []float32, k int) ([]documentModel.ScoredChunk, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, v, k)
	}
	return []documentModel.ScoredChunk{{
		Chunk: documentModel.ChunkRecord{DocumentID: "doc-1", Page: 1, Text: "default context", Source: "Master Circular"},
		Score: 0.9,
	}}, nil
}

// MockCache implements vectorDB.AnswerCache
type MockCache struct {
	OnLookup func(ctx context.Context, v []float32) (vectorDB.CachedAnswer, bool, error)

	mu    sync.Mutex
	Saved []vectorDB.CachedAnswer
}

func (m *MockCache) Lookup(ctx context.Context, v []float32) (vectorDB.CachedAnswer, bool, error) {
	if m.OnLookup != nil {
		return m.OnLookup(ctx, v)
	}
	return vectorDB.CachedAnswer{}, false, nil
}

func (m *MockCache) Save(ctx context.Context, v []float32, answer vectorDB.CachedAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, answer)
	return nil
}

func (m *MockCache) Invalidate(ctx context.Context) error { return nil }

type MockEmbedder struct {
	OnEmbed func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, text)
	}
	return []float32{0.1, 0.2}, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (m *MockEmbedder) Dimension() int { return 2 }

// MockLLM implements llm.Provider
type MockLLM struct {
	OnComplete func(ctx context.Context, prompt llm.Prompt) (string, error)

	mu      sync.Mutex
	Prompts []llm.Prompt
}

func (m *MockLLM) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()
	if m.OnComplete != nil {
		return m.OnComplete(ctx, prompt)
	}
	return "mocked llm response", nil
}

func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// MockIngester implements rag.Ingester
type MockIngester struct {
	OnIngest func(ctx context.Context, record documentModel.DocumentRecord) (int, error)
}

func (m *MockIngester) Ingest(ctx context.Context, record documentModel.DocumentRecord) (int, error) {
	if m.OnIngest != nil {
		return m.OnIngest(ctx, record)
	}
	return 1, nil
}
