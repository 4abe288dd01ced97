package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableEmbedder maps known texts to fixed vectors
type tableEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float64{10, 10}
		}
		out[i] = v
	}
	return out, nil
}

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	emb := &tableEmbedder{vectors: map[string][]float64{
		"drain pump": {0, 0},
		"door seal":  {3, 4},
		"dryer belt": {1, 0},
		"query":      {0, 0},
	}}
	m := NewMemory(emb)

	n, err := m.Add(context.Background(),
		[]string{"drain pump", "door seal", "dryer belt"},
		[]map[string]any{
			{domain.MetadataKeyDocumentID: "doc-1", domain.MetadataKeyDeviceType: "washer", domain.MetadataKeyBrand: "Samsung"},
			{domain.MetadataKeyDocumentID: "doc-1", domain.MetadataKeyDeviceType: "washer", domain.MetadataKeyBrand: "Samsung"},
			{domain.MetadataKeyDocumentID: "doc-2", domain.MetadataKeyDeviceType: "dryer", domain.MetadataKeyBrand: "LG", domain.MetadataKeyChunkIndex: 0},
		})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return m
}

func TestMemorySearchOrdersByDistance(t *testing.T) {
	m := newTestMemory(t)

	results, err := m.SimilaritySearchWithScore(context.Background(), "query", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "drain pump", results[0].Content)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-9)
	assert.Equal(t, "dryer belt", results[1].Content)
	assert.InDelta(t, 1.0, results[1].Distance, 1e-9)
	assert.Equal(t, "door seal", results[2].Content)
	assert.InDelta(t, 5.0, results[2].Distance, 1e-9)
}

func TestMemorySearchFiltersAndLimits(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	results, err := m.SimilaritySearchWithScore(ctx, "query", 5, map[string]string{"device_type": "washer"})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = m.SimilaritySearchWithScore(ctx, "query", 5, map[string]string{"device_type": "washer", "brand": "LG"})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = m.SimilaritySearchWithScore(ctx, "query", 5, map[string]string{"chunk_index": "0"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dryer belt", results[0].Content)

	results, err = m.SimilaritySearchWithScore(ctx, "query", 1, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = m.SimilaritySearchWithScore(ctx, "query", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryDeleteByDocumentID(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.DeleteByDocumentID(ctx, "doc-1"))
	assert.Equal(t, 1, m.Len())

	results, err := m.SimilaritySearchWithScore(ctx, "query", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-2", results[0].Metadata[domain.MetadataKeyDocumentID])

	require.NoError(t, m.DeleteByDocumentID(ctx, "unknown"))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryEmbedderFailure(t *testing.T) {
	m := NewMemory(&tableEmbedder{err: errors.New("rate limited")})
	ctx := context.Background()

	_, err := m.Add(ctx, []string{"a"}, []map[string]any{{}})
	assert.ErrorIs(t, err, domain.ErrDependency)

	_, err = m.SimilaritySearchWithScore(ctx, "a", 3, nil)
	assert.ErrorIs(t, err, domain.ErrDependency)

	_, err = m.Add(ctx, []string{"a", "b"}, []map[string]any{{}})
	assert.Error(t, err)
}

func TestMemorySearchReturnsMetadataCopies(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	results, err := m.SimilaritySearchWithScore(ctx, "query", 1, nil)
	require.NoError(t, err)
	results[0].Metadata[domain.MetadataKeyBrand] = "changed"

	results, err = m.SimilaritySearchWithScore(ctx, "query", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "Samsung", results[0].Metadata[domain.MetadataKeyBrand])
}
