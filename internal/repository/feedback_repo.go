package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/fixdoc/internal/domain"
)

// FeedbackRepository handles feedback persistence
type FeedbackRepository struct {
	db *DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

var _ domain.FeedbackStore = (*FeedbackRepository)(nil)

// GetByMessage retrieves the feedback left on a message. None yields nil, nil.
func (r *FeedbackRepository) GetByMessage(ctx context.Context, messageID string) (*domain.Feedback, error) {
	fb := &domain.Feedback{}
	var comment sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, message_id, rating, comment, created_at, updated_at
		FROM feedback WHERE message_id = ?
	`, messageID).Scan(&fb.ID, &fb.MessageID, &fb.Rating, &comment, &fb.CreatedAt, &fb.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "get feedback: %w", err)
	}

	fb.Comment = comment.String
	return fb, nil
}

// Create inserts new feedback
func (r *FeedbackRepository) Create(ctx context.Context, fb *domain.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	fb.CreatedAt = now
	fb.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback (id, message_id, rating, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fb.ID, fb.MessageID, fb.Rating, nullString(fb.Comment), fb.CreatedAt, fb.UpdatedAt)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "insert feedback: %w", err)
	}
	return nil
}

// Save overwrites the rating and comment of existing feedback
func (r *FeedbackRepository) Save(ctx context.Context, fb *domain.Feedback) error {
	fb.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE feedback SET rating = ?, comment = ?, updated_at = ? WHERE id = ?
	`, fb.Rating, nullString(fb.Comment), fb.UpdatedAt, fb.ID)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "update feedback: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.Errorf(domain.ErrNotFound, "feedback %s", fb.ID)
	}
	return nil
}

// CountByMessage returns how many feedback records exist for a message
func (r *FeedbackRepository) CountByMessage(ctx context.Context, messageID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback WHERE message_id = ?`, messageID).Scan(&count)
	if err != nil {
		return 0, domain.Errorf(domain.ErrStorage, "count feedback: %w", err)
	}
	return count, nil
}
