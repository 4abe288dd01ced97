package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// payloadTextKey holds the chunk text in a point payload
const payloadTextKey = "text"

// QdrantConfig configures the Qdrant index
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// Qdrant stores chunks in a Qdrant collection using euclidean distance,
// so search scores are raw distances.
type Qdrant struct {
	client     *qdrant.Client
	embedder   domain.Embedder
	collection string
	logger     *zap.Logger
}

var _ domain.VectorIndex = (*Qdrant)(nil)

// NewQdrant connects to Qdrant and creates the collection if missing
func NewQdrant(ctx context.Context, cfg QdrantConfig, embedder domain.Embedder, logger *zap.Logger) (*Qdrant, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", cfg.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	q := &Qdrant{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		logger:     logger.Named("qdrant"),
	}

	if err := q.ensureCollection(ctx, cfg.Dimension); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      domain.MetadataKeyDocumentID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", domain.MetadataKeyDocumentID, err)
	}

	q.logger.Info("created collection", zap.String("collection", q.collection), zap.Int("dimension", dimension))
	return nil
}

// Add embeds texts and upserts them as points
func (q *Qdrant) Add(ctx context.Context, texts []string, metadatas []map[string]any) (int, error) {
	if len(texts) != len(metadatas) {
		return 0, fmt.Errorf("texts and metadatas length mismatch: %d != %d", len(texts), len(metadatas))
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := q.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, domain.Errorf(domain.ErrDependency, "embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, domain.Errorf(domain.ErrDependency, "embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	points := make([]*qdrant.PointStruct, len(texts))
	for i := range texts {
		fields := make(map[string]any, len(metadatas[i])+1)
		for k, v := range metadatas[i] {
			fields[k] = v
		}
		fields[payloadTextKey] = texts[i]

		payload, err := qdrant.TryValueMap(fields)
		if err != nil {
			return 0, fmt.Errorf("invalid chunk metadata: %w", err)
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(toFloat32(vectors[i])...),
			Payload: payload,
		}
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return 0, domain.Errorf(domain.ErrDependency, "qdrant upsert: %w", err)
	}
	return len(points), nil
}

// SimilaritySearchWithScore queries the collection with an optional equality filter
func (q *Qdrant) SimilaritySearchWithScore(ctx context.Context, query string, k int, filter map[string]string) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	vectors, err := q.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, domain.Errorf(domain.ErrDependency, "embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, domain.Errorf(domain.ErrDependency, "embedder returned %d vectors for 1 query", len(vectors))
	}

	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(toFloat32(vectors[0])...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		req.Filter = matchFilter(filter)
	}

	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, domain.Errorf(domain.ErrDependency, "qdrant query: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(points))
	for _, p := range points {
		metadata := fromPayload(p.GetPayload())
		text, _ := metadata[payloadTextKey].(string)
		delete(metadata, payloadTextKey)

		results = append(results, domain.ScoredChunk{
			Content:  text,
			Metadata: metadata,
			Distance: float64(p.GetScore()),
		})
	}
	return results, nil
}

// DeleteByDocumentID removes every point whose payload carries documentID
func (q *Qdrant) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(
			matchFilter(map[string]string{domain.MetadataKeyDocumentID: documentID}),
		),
	})
	if err != nil {
		return domain.Errorf(domain.ErrDependency, "qdrant delete: %w", err)
	}
	return nil
}

// Ping checks that Qdrant is reachable
func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return domain.Errorf(domain.ErrDependency, "qdrant health check: %w", err)
	}
	return nil
}

// Close closes the gRPC connection
func (q *Qdrant) Close() error {
	return q.client.Close()
}

func matchFilter(filter map[string]string) *qdrant.Filter {
	must := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		must = append(must, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: must}
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = int(kind.IntegerValue)
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
