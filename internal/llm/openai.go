// Package llm talks to OpenAI-compatible chat and embedding endpoints.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// Config configures the OpenAI client
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
}

func newClient(cfg Config) openai.Client {
	opts := []option.RequestOption{
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

// Generator produces answers with a chat completion model
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

var _ domain.LanguageModel = (*Generator)(nil)

// NewGenerator creates a chat completion generator
func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	return &Generator{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      logger.Named("llm"),
	}
}

// Generate sends prompt as a single user message. The call, retries included,
// is bounded by the configured timeout.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(ctx, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.Errorf(domain.ErrDependency, "chat completion returned no choices")
	}

	g.logger.Debug("generated answer",
		zap.String("model", g.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int64("total_tokens", resp.Usage.TotalTokens))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embedder embeds text with an embedding model
type Embedder struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embeddings client
func NewEmbedder(cfg Config) *Embedder {
	return &Embedder{
		client:  newClient(cfg),
		model:   cfg.EmbeddingModel,
		timeout: cfg.Timeout,
	}
}

// Embed returns one vector per text, in input order
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classify(ctx, "embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.Errorf(domain.ErrDependency, "embeddings returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, domain.Errorf(domain.ErrDependency, "embeddings returned out of range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// classify maps a provider error onto the timeout or dependency kinds
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.Errorf(domain.ErrTimeout, "%s: %w", op, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return domain.Errorf(domain.ErrDependency, "%s: status %d: %w", op, apiErr.StatusCode, err)
	}
	return domain.Errorf(domain.ErrDependency, "%s: %w", op, err)
}
