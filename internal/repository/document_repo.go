package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/fixdoc/internal/domain"
)

// DocumentRepository handles manual document persistence
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

var _ domain.DocumentStore = (*DocumentRepository)(nil)

const documentColumns = `id, filename, device_type, brand, model, file_path, file_type, file_size,
	page_count, status, error_message, chunks_count, uploaded_by, uploaded_at, processed_at`

// Create inserts a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.ManualDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Filename, doc.DeviceType, doc.Brand, nullString(doc.Model), doc.FilePath,
		string(doc.FileType), doc.FileSize, doc.PageCount, doc.Status.String(),
		nullString(doc.ErrorMessage), doc.ChunksCount, doc.UploadedBy, doc.UploadedAt, nullTime(doc.ProcessedAt))
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "insert document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID. A missing document yields nil, nil.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*domain.ManualDocument, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "get document: %w", err)
	}
	return doc, nil
}

// List retrieves documents matching the filter, newest upload first
func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.ManualDocument, error) {
	var (
		where []string
		args  []any
	)
	if filter.UploadedBy != "" {
		where = append(where, "uploaded_by = ?")
		args = append(args, filter.UploadedBy)
	}
	if filter.DeviceType != "" {
		where = append(where, "device_type = ?")
		args = append(args, filter.DeviceType)
	}
	if filter.Brand != "" {
		where = append(where, "brand = ?")
		args = append(args, filter.Brand)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY uploaded_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limitOrAll(filter.Limit), filter.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list documents: %w", err)
	}
	defer rows.Close()

	docs := []*domain.ManualDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.Errorf(domain.ErrStorage, "scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list documents: %w", err)
	}
	return docs, nil
}

// Save updates the mutable fields of a document
func (r *DocumentRepository) Save(ctx context.Context, doc *domain.ManualDocument) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, chunks_count = ?, page_count = ?, processed_at = ?
		WHERE id = ?
	`, doc.Status.String(), nullString(doc.ErrorMessage), doc.ChunksCount, doc.PageCount,
		nullTime(doc.ProcessedAt), doc.ID)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "update document: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.Errorf(domain.ErrNotFound, "document %s", doc.ID)
	}
	return nil
}

// Delete deletes a document
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "delete document: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.Errorf(domain.ErrNotFound, "document %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.ManualDocument, error) {
	doc := &domain.ManualDocument{}
	var (
		model, errMsg sql.NullString
		fileType      string
		status        string
		processedAt   sql.NullTime
	)

	if err := row.Scan(&doc.ID, &doc.Filename, &doc.DeviceType, &doc.Brand, &model, &doc.FilePath,
		&fileType, &doc.FileSize, &doc.PageCount, &status, &errMsg, &doc.ChunksCount,
		&doc.UploadedBy, &doc.UploadedAt, &processedAt); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseDocumentStatus(status)
	if err != nil {
		return nil, err
	}
	doc.Status = parsed
	doc.FileType = domain.FileType(fileType)
	doc.Model = model.String
	doc.ErrorMessage = errMsg.String
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// limitOrAll maps a non-positive limit to sqlite's "no limit"
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
