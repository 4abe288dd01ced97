package service

import (
	"context"
	"strings"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"go.uber.org/zap"
)

// FeedbackService records ratings on messages, one per message
type FeedbackService struct {
	convs    domain.ConversationStore
	feedback domain.FeedbackStore
	locks    *KeyedMutex
	logger   *zap.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(convs domain.ConversationStore, feedback domain.FeedbackStore, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{
		convs:    convs,
		feedback: feedback,
		locks:    NewKeyedMutex(),
		logger:   logger.Named("feedback"),
	}
}

// Submit creates feedback for a message, or overwrites the rating and
// comment of feedback already left on it
func (s *FeedbackService) Submit(ctx context.Context, accountID string, req *domain.FeedbackRequest) (*domain.FeedbackResponse, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, domain.Errorf(domain.ErrValidation, "rating must be between 1 and 5, got %d", req.Rating)
	}
	messageID := strings.TrimSpace(req.MessageID)
	if messageID == "" {
		return nil, domain.Errorf(domain.ErrValidation, "message id is required")
	}

	msg, err := s.convs.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "message %s", messageID)
	}

	conv, err := s.convs.Get(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "message %s", messageID)
	}
	if conv.AccountID != accountID {
		return nil, domain.Errorf(domain.ErrForbidden, "message %s", messageID)
	}

	unlock, err := s.locks.Lock(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.feedback.GetByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Rating = req.Rating
		existing.Comment = req.Comment
		if err := s.feedback.Save(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("updated feedback", zap.String("message_id", messageID), zap.Int("rating", req.Rating))
		return &domain.FeedbackResponse{FeedbackID: existing.ID, Message: "Feedback updated successfully"}, nil
	}

	fb := &domain.Feedback{MessageID: messageID, Rating: req.Rating, Comment: req.Comment}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, err
	}
	s.logger.Info("created feedback", zap.String("message_id", messageID), zap.Int("rating", req.Rating))
	return &domain.FeedbackResponse{FeedbackID: fb.ID, Message: "Feedback submitted successfully", Created: true}, nil
}
