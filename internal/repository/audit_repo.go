package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/fixdoc/internal/domain"
)

// AuditRepository records the outcome of best-effort side effects
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ domain.AuditStore = (*AuditRepository)(nil)

// Record appends an audit event
func (r *AuditRepository) Record(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, operation, subject_id, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ID, event.Operation, event.SubjectID, event.Outcome, nullString(event.Detail), event.CreatedAt)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns the events recorded for a subject, oldest first
func (r *AuditRepository) ListBySubject(ctx context.Context, subjectID string) ([]*domain.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation, subject_id, outcome, COALESCE(detail, ''), created_at
		FROM audit_events WHERE subject_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, subjectID)
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list audit events: %w", err)
	}
	defer rows.Close()

	events := []*domain.AuditEvent{}
	for rows.Next() {
		e := &domain.AuditEvent{}
		if err := rows.Scan(&e.ID, &e.Operation, &e.SubjectID, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, domain.Errorf(domain.ErrStorage, "scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list audit events: %w", err)
	}
	return events, nil
}
