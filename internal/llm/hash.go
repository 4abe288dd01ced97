package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/liliang-cn/fixdoc/internal/domain"
)

// HashEmbedder is an offline embedder that hashes word tokens into a fixed
// number of buckets and L2-normalizes the counts. Identical texts map to
// identical vectors.
type HashEmbedder struct {
	Dimension int
}

var _ domain.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a hashing embedder with the given dimension
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{Dimension: dimension}
}

// Embed never fails
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		vectors[i] = h.vector(t)
	}
	return vectors, nil
}

func (h *HashEmbedder) vector(text string) []float64 {
	v := make([]float64, h.Dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		f.Write([]byte(tok))
		v[int(f.Sum32()%uint32(h.Dimension))]++
	}

	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}
