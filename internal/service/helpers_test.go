package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/liliang-cn/fixdoc/internal/config"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/liliang-cn/fixdoc/internal/vectorindex"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedLLM returns canned answers in order and records every prompt
type scriptedLLM struct {
	mu      sync.Mutex
	answers []string
	err     error
	prompts []string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.answers) == 0 {
		return "generic answer", nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// failingIndex wraps the memory index and injects errors
type failingIndex struct {
	*vectorindex.Memory
	addErr    error
	searchErr error
	deleteErr error
}

func (f *failingIndex) Add(ctx context.Context, texts []string, metadatas []map[string]any) (int, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	return f.Memory.Add(ctx, texts, metadatas)
}

func (f *failingIndex) SimilaritySearchWithScore(ctx context.Context, query string, k int, filter map[string]string) ([]domain.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.Memory.SimilaritySearchWithScore(ctx, query, k, filter)
}

func (f *failingIndex) DeleteByDocumentID(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Memory.DeleteByDocumentID(ctx, id)
}

// failRunner makes pdftotext fail
type failRunner struct{}

func (failRunner) Run(context.Context, string, ...string) ([]byte, error) {
	return nil, fmt.Errorf("pdftotext: exit status 1")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "fixdoc.db")},
		Storage: config.StorageConfig{
			Uploads:           filepath.Join(dir, "uploads"),
			MaxUploadSize:     "1MB",
			AllowedExtensions: []string{"pdf", "txt"},
		},
		RAG: config.RAGConfig{
			ChunkSize:          1000,
			ChunkOverlap:       200,
			TopK:               5,
			RelevanceThreshold: 0.7,
			MinTextLength:      100,
			ExtractWorkers:     2,
		},
		Vector: config.VectorConfig{Backend: "memory", Dimension: 256},
		LLM:    config.LLMConfig{EmbeddingProvider: "hash"},
	}
}

func newTestEngine(t *testing.T, model domain.LanguageModel, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithLanguageModel(model)}, opts...)
	engine, err := NewEngine(context.Background(), testConfig(t), zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

// manualText is 600 distinct four-letter words on one line, 2999 characters
func manualText() string {
	words := make([]string, 600)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(words, " ")
}

func uploadText(t *testing.T, s *IngestService, account, filename, text string) *domain.ManualDocument {
	t.Helper()
	doc, err := s.Upload(context.Background(), account, domain.UploadRequest{
		Filename:   filename,
		DeviceType: "washing_machine",
		Brand:      "Samsung",
		Size:       int64(len(text)),
	}, strings.NewReader(text))
	require.NoError(t, err)
	return doc
}
