package service

import (
	"context"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"go.uber.org/zap"
)

// RetrievalQuery is a similarity query with optional equality filters
type RetrievalQuery struct {
	Query      string
	DeviceType string
	Brand      string
	Model      string
	TopK       int
}

// RetrievedChunk is a passage that passed the relevance threshold
type RetrievedChunk struct {
	Content        string
	SourceFile     string
	PageNumber     *int
	SectionName    string
	RelevanceScore float64
	DeviceType     string
	Brand          string
	Model          string
}

// Relevance maps a non-negative distance into (0, 1]; closer is higher.
func Relevance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// Retriever queries the vector index and drops weak matches
type Retriever struct {
	index     domain.VectorIndex
	topK      int
	threshold float64
	logger    *zap.Logger
}

// NewRetriever creates a retriever
func NewRetriever(index domain.VectorIndex, topK int, threshold float64, logger *zap.Logger) *Retriever {
	return &Retriever{
		index:     index,
		topK:      topK,
		threshold: threshold,
		logger:    logger.Named("retriever"),
	}
}

// Retrieve returns passages in index order whose relevance is at least the
// threshold. Index failures are logged and yield no passages.
func (r *Retriever) Retrieve(ctx context.Context, q RetrievalQuery) []RetrievedChunk {
	k := q.TopK
	if k <= 0 {
		k = r.topK
	}

	filter := map[string]string{}
	if q.DeviceType != "" {
		filter[domain.MetadataKeyDeviceType] = q.DeviceType
	}
	if q.Brand != "" {
		filter[domain.MetadataKeyBrand] = q.Brand
	}
	if q.Model != "" {
		filter[domain.MetadataKeyModel] = q.Model
	}
	if len(filter) == 0 {
		filter = nil
	}

	results, err := r.index.SimilaritySearchWithScore(ctx, q.Query, k, filter)
	if err != nil {
		r.logger.Error("similarity search failed", zap.Error(err), zap.Any("filter", filter))
		return []RetrievedChunk{}
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	for _, res := range results {
		score := Relevance(res.Distance)
		if score < r.threshold {
			continue
		}
		chunks = append(chunks, RetrievedChunk{
			Content:        res.Content,
			SourceFile:     stringOr(res.Metadata[domain.MetadataKeySourceFile], "Unknown"),
			PageNumber:     intPtr(res.Metadata[domain.MetadataKeyPageNumber]),
			SectionName:    stringOr(res.Metadata[domain.MetadataKeySectionName], ""),
			RelevanceScore: score,
			DeviceType:     stringOr(res.Metadata[domain.MetadataKeyDeviceType], ""),
			Brand:          stringOr(res.Metadata[domain.MetadataKeyBrand], ""),
			Model:          stringOr(res.Metadata[domain.MetadataKeyModel], ""),
		})
	}

	r.logger.Debug("retrieved chunks",
		zap.Int("candidates", len(results)),
		zap.Int("kept", len(chunks)),
		zap.String("query", truncate(q.Query, 50)))
	return chunks
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intPtr(v any) *int {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	default:
		return nil
	}
	return &n
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
