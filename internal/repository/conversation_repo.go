package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/fixdoc/internal/domain"
)

// ConversationRepository handles conversation and message persistence
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

var _ domain.ConversationStore = (*ConversationRepository)(nil)

// Create creates a new conversation
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, account_id, device_type, brand, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, conv.ID, conv.AccountID, nullString(conv.DeviceType), nullString(conv.Brand),
		nullString(conv.Model), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "insert conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID. A missing conversation yields nil, nil.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	var deviceType, brand, model sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, device_type, brand, model, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.AccountID, &deviceType, &brand, &model, &conv.CreatedAt, &conv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "get conversation: %w", err)
	}

	conv.DeviceType = deviceType.String
	conv.Brand = brand.String
	conv.Model = model.String
	return conv, nil
}

// ListByAccount lists an account's conversations, most recently updated first,
// each with its message count
func (r *ConversationRepository) ListByAccount(ctx context.Context, accountID string, skip, limit int) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.account_id, c.device_type, c.brand, c.model, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.account_id = ?
		ORDER BY c.updated_at DESC, c.rowid DESC
		LIMIT ? OFFSET ?
	`, accountID, limitOrAll(limit), skip)
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []*domain.ConversationSummary{}
	for rows.Next() {
		s := &domain.ConversationSummary{}
		var deviceType, brand, model sql.NullString

		if err := rows.Scan(&s.ID, &s.AccountID, &deviceType, &brand, &model,
			&s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, domain.Errorf(domain.ErrStorage, "scan conversation: %w", err)
		}

		s.DeviceType = deviceType.String
		s.Brand = brand.String
		s.Model = model.String
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list conversations: %w", err)
	}
	return summaries, nil
}

// Touch refreshes a conversation's updated_at timestamp
func (r *ConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "touch conversation: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.Errorf(domain.ErrNotFound, "conversation %s", id)
	}
	return nil
}

// Delete deletes a conversation together with its messages and their feedback
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "delete conversation: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.Errorf(domain.ErrNotFound, "conversation %s", id)
	}
	return nil
}

// CreateMessage creates a new message
func (r *ConversationRepository) CreateMessage(ctx context.Context, message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	if message.Sources == nil {
		message.Sources = []domain.Citation{}
	}

	sourcesJSON, err := json.Marshal(message.Sources)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "encode sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, message.ID, message.ConversationID, string(message.Role), message.Content,
		string(sourcesJSON), message.CreatedAt)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID. A missing message yields nil, nil.
func (r *ConversationRepository) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at
		FROM messages WHERE id = ?
	`, id)

	message, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "get message: %w", err)
	}
	return message, nil
}

// GetMessages retrieves all messages for a conversation in creation order
func (r *ConversationRepository) GetMessages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, conversationID)
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list messages: %w", err)
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, domain.Errorf(domain.ErrStorage, "scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list messages: %w", err)
	}
	return messages, nil
}

// CountMessages returns the number of messages in a conversation
func (r *ConversationRepository) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	if err != nil {
		return 0, domain.Errorf(domain.ErrStorage, "count messages: %w", err)
	}
	return count, nil
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	message := &domain.Message{}
	var (
		role        string
		sourcesJSON sql.NullString
	)

	if err := row.Scan(&message.ID, &message.ConversationID, &role,
		&message.Content, &sourcesJSON, &message.CreatedAt); err != nil {
		return nil, err
	}

	message.Role = domain.Role(role)
	message.Sources = []domain.Citation{}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &message.Sources); err != nil {
			return nil, err
		}
	}
	return message, nil
}
