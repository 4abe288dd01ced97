package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/liliang-cn/fixdoc/internal/config"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/liliang-cn/fixdoc/internal/extract"
	"github.com/liliang-cn/fixdoc/internal/llm"
	"github.com/liliang-cn/fixdoc/internal/repository"
	"github.com/liliang-cn/fixdoc/internal/vectorindex"
	"go.uber.org/zap"
)

// Engine wires the stores, model clients and services for one process.
// It is built at startup and released with Close at shutdown.
type Engine struct {
	DB       *repository.DB
	Index    domain.VectorIndex
	Audit    domain.AuditStore
	Ingest   *IngestService
	Chat     *ChatService
	Feedback *FeedbackService
	Catalog  *CatalogService
	logger   *zap.Logger
}

// EngineOption overrides a collaborator built by NewEngine
type EngineOption func(*engineParts)

type engineParts struct {
	llm       domain.LanguageModel
	embedder  domain.Embedder
	index     domain.VectorIndex
	extractor TextExtractor
}

// WithLanguageModel replaces the OpenAI generator
func WithLanguageModel(m domain.LanguageModel) EngineOption {
	return func(p *engineParts) { p.llm = m }
}

// WithEmbedder replaces the configured embedder
func WithEmbedder(e domain.Embedder) EngineOption {
	return func(p *engineParts) { p.embedder = e }
}

// WithVectorIndex replaces the configured vector index
func WithVectorIndex(idx domain.VectorIndex) EngineOption {
	return func(p *engineParts) { p.index = idx }
}

// WithExtractor replaces the text extractor
func WithExtractor(x TextExtractor) EngineOption {
	return func(p *engineParts) { p.extractor = x }
}

// NewEngine opens the database and vector index and builds the services
func NewEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	var parts engineParts
	for _, opt := range opts {
		opt(&parts)
	}

	llmCfg := llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
	}

	if parts.embedder == nil {
		switch cfg.LLM.EmbeddingProvider {
		case "hash":
			parts.embedder = llm.NewHashEmbedder(cfg.Vector.Dimension)
		default:
			parts.embedder = llm.NewEmbedder(llmCfg)
		}
	}
	if parts.llm == nil {
		parts.llm = llm.NewGenerator(llmCfg, logger)
	}
	if parts.extractor == nil {
		parts.extractor = extract.New(cfg.RAG.ExtractWorkers, logger)
	}

	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if parts.index == nil {
		parts.index, err = newVectorIndex(ctx, cfg, parts.embedder, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	docRepo := repository.NewDocumentRepository(db)
	convRepo := repository.NewConversationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	catalog := NewCatalogService(catalogRepo, logger)
	ingest, err := NewIngestService(cfg, docRepo, parts.index, parts.extractor, catalog, auditRepo, logger)
	if err != nil {
		parts.index.Close()
		db.Close()
		return nil, err
	}

	retriever := NewRetriever(parts.index, cfg.RAG.TopK, cfg.RAG.RelevanceThreshold, logger)
	synth := NewSynthesizer(parts.llm, logger)

	return &Engine{
		DB:       db,
		Index:    parts.index,
		Audit:    auditRepo,
		Ingest:   ingest,
		Chat:     NewChatService(convRepo, retriever, synth, logger),
		Feedback: NewFeedbackService(convRepo, feedbackRepo, logger),
		Catalog:  catalog,
		logger:   logger,
	}, nil
}

func newVectorIndex(ctx context.Context, cfg *config.Config, embedder domain.Embedder, logger *zap.Logger) (domain.VectorIndex, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		return vectorindex.NewQdrant(ctx, vectorindex.QdrantConfig{
			Host:       cfg.Vector.Host,
			Port:       cfg.Vector.Port,
			APIKey:     cfg.Vector.APIKey,
			UseTLS:     cfg.Vector.UseTLS,
			Collection: cfg.Vector.Collection,
			Dimension:  cfg.Vector.Dimension,
		}, embedder, logger)
	case "memory":
		return vectorindex.NewMemory(embedder), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}

// HealthReport describes the reachability of long-lived collaborators
type HealthReport struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	VectorIndex string `json:"vector_index"`
}

// Health pings the database and vector index
func (e *Engine) Health(ctx context.Context) HealthReport {
	report := HealthReport{Status: "healthy", Database: "ok", VectorIndex: "ok"}
	if err := e.DB.Ping(ctx); err != nil {
		e.logger.Warn("database health check failed", zap.Error(err))
		report.Database = "unreachable"
		report.Status = "degraded"
	}
	if err := e.Index.Ping(ctx); err != nil {
		e.logger.Warn("vector index health check failed", zap.Error(err))
		report.VectorIndex = "unreachable"
		report.Status = "degraded"
	}
	return report
}

// Close releases the vector index and database
func (e *Engine) Close() error {
	return errors.Join(e.Index.Close(), e.DB.Close())
}
