// Package vectorindex stores manual chunks as embeddings and answers
// similarity queries with raw euclidean distances.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/liliang-cn/fixdoc/internal/domain"
)

type entry struct {
	text     string
	metadata map[string]any
	vector   []float64
}

// Memory is an in-process index using brute-force L2 distance
type Memory struct {
	mu       sync.RWMutex
	embedder domain.Embedder
	entries  []entry
}

// NewMemory creates an empty in-memory index
func NewMemory(embedder domain.Embedder) *Memory {
	return &Memory{embedder: embedder}
}

var _ domain.VectorIndex = (*Memory)(nil)

// Add embeds and stores texts with their metadata
func (m *Memory) Add(ctx context.Context, texts []string, metadatas []map[string]any) (int, error) {
	if len(texts) != len(metadatas) {
		return 0, fmt.Errorf("texts and metadatas length mismatch: %d != %d", len(texts), len(metadatas))
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, domain.Errorf(domain.ErrDependency, "embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, domain.Errorf(domain.ErrDependency, "embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range texts {
		m.entries = append(m.entries, entry{text: texts[i], metadata: metadatas[i], vector: vectors[i]})
	}
	return len(texts), nil
}

// SimilaritySearchWithScore returns the k nearest passages matching filter
func (m *Memory) SimilaritySearchWithScore(ctx context.Context, query string, k int, filter map[string]string) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, domain.Errorf(domain.ErrDependency, "embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, domain.Errorf(domain.ErrDependency, "embedder returned %d vectors for 1 query", len(vectors))
	}
	q := vectors[0]

	m.mu.RLock()
	results := make([]domain.ScoredChunk, 0, len(m.entries))
	for _, e := range m.entries {
		if !matches(e.metadata, filter) {
			continue
		}
		if len(e.vector) != len(q) {
			m.mu.RUnlock()
			return nil, domain.Errorf(domain.ErrDependency, "vector dimension mismatch: %d != %d", len(e.vector), len(q))
		}
		results = append(results, domain.ScoredChunk{
			Content:  e.text,
			Metadata: copyMetadata(e.metadata),
			Distance: euclidean(e.vector, q),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteByDocumentID removes every chunk tagged with documentID
func (m *Memory) DeleteByDocumentID(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if fmt.Sprint(e.metadata[domain.MetadataKeyDocumentID]) != documentID {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = entry{}
	}
	m.entries = kept
	return nil
}

// Len returns the number of stored chunks
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Ping always succeeds
func (m *Memory) Ping(context.Context) error { return nil }

// Close drops all stored chunks
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

func matches(metadata map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func copyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
