package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"go.uber.org/zap"
)

const (
	maxQueryLength           = 1000
	defaultConversationLimit = 20
)

// ChatService threads questions and answers into conversations
type ChatService struct {
	convs     domain.ConversationStore
	retriever *Retriever
	synth     *Synthesizer
	locks     *KeyedMutex
	logger    *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	convs domain.ConversationStore,
	retriever *Retriever,
	synth *Synthesizer,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		convs:     convs,
		retriever: retriever,
		synth:     synth,
		locks:     NewKeyedMutex(),
		logger:    logger.Named("chat"),
	}
}

// Chat answers a question within a new or existing conversation. Turns on
// the same conversation are handled one at a time.
func (s *ChatService) Chat(ctx context.Context, accountID string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.Errorf(domain.ErrValidation, "query is required")
	}
	if utf8.RuneCountInString(query) > maxQueryLength {
		return nil, domain.Errorf(domain.ErrValidation, "query must be at most %d characters", maxQueryLength)
	}

	conv, unlock, err := s.openConversation(ctx, accountID, req)
	if err != nil {
		return nil, err
	}
	defer unlock()

	userMsg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        query,
	}
	if err := s.convs.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	s.logger.Info("processing query",
		zap.String("conversation_id", conv.ID),
		zap.String("query", truncate(query, 50)))

	chunks := s.retriever.Retrieve(ctx, RetrievalQuery{
		Query:      query,
		DeviceType: strings.TrimSpace(req.DeviceType),
		Brand:      strings.TrimSpace(req.Brand),
		Model:      strings.TrimSpace(req.Model),
	})

	answer, err := s.synth.Synthesize(ctx, query, chunks)
	if err != nil {
		return nil, err
	}

	assistantMsg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        answer.Text,
		Sources:        answer.Sources,
	}
	if err := s.convs.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	if err := s.convs.Touch(ctx, conv.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return &domain.ChatResponse{
		Answer:         answer.Text,
		Sources:        answer.Sources,
		ConversationID: conv.ID,
		MessageID:      assistantMsg.ID,
		Timestamp:      assistantMsg.CreatedAt,
	}, nil
}

// openConversation resolves or creates the conversation and locks it
func (s *ChatService) openConversation(ctx context.Context, accountID string, req *domain.ChatRequest) (*domain.Conversation, func(), error) {
	if req.ConversationID == "" {
		conv := &domain.Conversation{
			AccountID:  accountID,
			DeviceType: strings.TrimSpace(req.DeviceType),
			Brand:      strings.TrimSpace(req.Brand),
			Model:      strings.TrimSpace(req.Model),
		}
		if err := s.convs.Create(ctx, conv); err != nil {
			return nil, nil, err
		}
		unlock, err := s.locks.Lock(ctx, conv.ID)
		if err != nil {
			return nil, nil, err
		}
		return conv, unlock, nil
	}

	unlock, err := s.locks.Lock(ctx, req.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.owned(ctx, accountID, req.ConversationID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return conv, unlock, nil
}

func (s *ChatService) owned(ctx context.Context, accountID, id string) (*domain.Conversation, error) {
	conv, err := s.convs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "conversation %s", id)
	}
	if conv.AccountID != accountID {
		return nil, domain.Errorf(domain.ErrForbidden, "conversation %s", id)
	}
	return conv, nil
}

// History returns a conversation and its messages, oldest first
func (s *ChatService) History(ctx context.Context, accountID, id string) (*domain.ConversationHistory, error) {
	conv, err := s.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.convs.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.ConversationHistory{
		Conversation: domain.ConversationSummary{Conversation: *conv, MessageCount: len(messages)},
		Messages:     messages,
	}, nil
}

// ListConversations returns the account's conversations, most recently updated first
func (s *ChatService) ListConversations(ctx context.Context, accountID string, skip, limit int) ([]*domain.ConversationSummary, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	return s.convs.ListByAccount(ctx, accountID, skip, limit)
}

// DeleteConversation removes a conversation with its messages and feedback
func (s *ChatService) DeleteConversation(ctx context.Context, accountID, id string) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.owned(ctx, accountID, id); err != nil {
		return err
	}
	if err := s.convs.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}
