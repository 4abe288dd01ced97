package domain

import (
	"context"
	"time"
)

// ScoredChunk is a passage returned by the vector index with its raw distance.
// Smaller distances are closer matches.
type ScoredChunk struct {
	Content  string
	Metadata map[string]any
	Distance float64
}

// VectorIndex stores chunk embeddings and answers similarity queries
type VectorIndex interface {
	// Add indexes texts with their metadata and returns how many were stored
	Add(ctx context.Context, texts []string, metadatas []map[string]any) (int, error)
	// SimilaritySearchWithScore returns up to k passages ordered by ascending distance.
	// A non-empty filter restricts results to exact metadata matches.
	SimilaritySearchWithScore(ctx context.Context, query string, k int, filter map[string]string) ([]ScoredChunk, error)
	// DeleteByDocumentID removes every chunk of a document
	DeleteByDocumentID(ctx context.Context, documentID string) error
	Ping(ctx context.Context) error
	Close() error
}

// Embedder converts text into vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// LanguageModel generates a completion for a single self-contained prompt
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentStore persists manual documents
type DocumentStore interface {
	Create(ctx context.Context, doc *ManualDocument) error
	Get(ctx context.Context, id string) (*ManualDocument, error)
	List(ctx context.Context, filter DocumentFilter) ([]*ManualDocument, error)
	Save(ctx context.Context, doc *ManualDocument) error
	Delete(ctx context.Context, id string) error
}

// ConversationStore persists conversations and their messages
type ConversationStore interface {
	Create(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	ListByAccount(ctx context.Context, accountID string, skip, limit int) ([]*ConversationSummary, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetMessages(ctx context.Context, conversationID string) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)
}

// FeedbackStore persists message feedback
type FeedbackStore interface {
	GetByMessage(ctx context.Context, messageID string) (*Feedback, error)
	Create(ctx context.Context, fb *Feedback) error
	Save(ctx context.Context, fb *Feedback) error
	CountByMessage(ctx context.Context, messageID string) (int, error)
}

// CatalogStore persists the device catalog
type CatalogStore interface {
	Get(ctx context.Context, name string) (*DeviceCategory, error)
	Create(ctx context.Context, cat *DeviceCategory) error
	Save(ctx context.Context, cat *DeviceCategory) error
	List(ctx context.Context) ([]*DeviceCategory, error)
}

// AuditStore persists side effect outcomes
type AuditStore interface {
	Record(ctx context.Context, event *AuditEvent) error
	ListBySubject(ctx context.Context, subjectID string) ([]*AuditEvent, error)
}
