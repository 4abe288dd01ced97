package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/liliang-cn/fixdoc/internal/chunker"
	"github.com/liliang-cn/fixdoc/internal/config"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/liliang-cn/fixdoc/internal/extract"
	"go.uber.org/zap"
)

// TextExtractor reads the text of an uploaded file
type TextExtractor interface {
	Extract(ctx context.Context, path string, fileType domain.FileType) (*extract.Result, error)
}

const (
	defaultDocumentLimit = 50

	// cleanupTimeout bounds the bookkeeping that runs after a caller has gone
	cleanupTimeout = 30 * time.Second
)

// IngestService owns uploaded manuals and their processing lifecycle
type IngestService struct {
	cfg       *config.Config
	docs      domain.DocumentStore
	index     domain.VectorIndex
	extractor TextExtractor
	splitter  *chunker.Splitter
	catalog   *CatalogService
	audit     *auditor
	locks     *KeyedMutex
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	cfg *config.Config,
	docs domain.DocumentStore,
	index domain.VectorIndex,
	extractor TextExtractor,
	catalog *CatalogService,
	audits domain.AuditStore,
	logger *zap.Logger,
) (*IngestService, error) {
	splitter, err := chunker.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	logger = logger.Named("ingest")
	return &IngestService{
		cfg:       cfg,
		docs:      docs,
		index:     index,
		extractor: extractor,
		splitter:  splitter,
		catalog:   catalog,
		audit:     &auditor{store: audits, logger: logger},
		locks:     NewKeyedMutex(),
		logger:    logger,
	}, nil
}

// DetectFileType maps a filename extension to a supported file type
func DetectFileType(filename string) (domain.FileType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return domain.FileTypePDF, true
	case ".txt", ".text":
		return domain.FileTypeText, true
	default:
		return "", false
	}
}

// Upload validates and stores a manual, then processes it. Processing
// failures leave the document FAILED and are not returned as errors.
func (s *IngestService) Upload(ctx context.Context, accountID string, req domain.UploadRequest, content io.Reader) (*domain.ManualDocument, error) {
	req.DeviceType = strings.TrimSpace(req.DeviceType)
	req.Brand = strings.TrimSpace(req.Brand)
	req.Model = strings.TrimSpace(req.Model)
	req.Filename = filepath.Base(strings.TrimSpace(req.Filename))

	if req.DeviceType == "" || req.Brand == "" {
		return nil, domain.Errorf(domain.ErrValidation, "device type and brand are required")
	}
	if req.Filename == "" || req.Filename == "." || req.Filename == string(filepath.Separator) {
		return nil, domain.Errorf(domain.ErrValidation, "filename is required")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(req.Filename)), ".")
	fileType, supported := DetectFileType(req.Filename)
	if !supported || !s.cfg.ExtensionAllowed(ext) {
		return nil, domain.Errorf(domain.ErrValidation, "file type not allowed, allowed types: %s",
			strings.Join(s.cfg.Storage.AllowedExtensions, ", "))
	}

	maxBytes, err := s.cfg.MaxUploadBytes()
	if err != nil {
		return nil, err
	}
	if req.Size > maxBytes {
		return nil, domain.Errorf(domain.ErrValidation, "file too large, maximum size: %s", s.cfg.Storage.MaxUploadSize)
	}

	if err := os.MkdirAll(s.cfg.Storage.Uploads, 0755); err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "create upload directory: %w", err)
	}

	now := time.Now().UTC()
	storedName := fmt.Sprintf("%s_%s_%s_%s", pathSafe(req.DeviceType), pathSafe(req.Brand),
		now.Format("20060102_150405"), req.Filename)
	path := filepath.Join(s.cfg.Storage.Uploads, storedName)

	size, err := saveFile(path, content, maxBytes)
	if err != nil {
		return nil, err
	}

	doc := &domain.ManualDocument{
		Filename:   req.Filename,
		DeviceType: req.DeviceType,
		Brand:      req.Brand,
		Model:      req.Model,
		FilePath:   path,
		FileType:   fileType,
		FileSize:   size,
		Status:     domain.DocumentStatusPending,
		UploadedBy: accountID,
		UploadedAt: now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		os.Remove(path)
		return nil, err
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int64("size", size))

	processed, err := s.Process(ctx, doc.ID)
	if err != nil {
		s.logger.Error("document left unprocessed", zap.String("document_id", doc.ID), zap.Error(err))
		return doc, nil
	}
	return processed, nil
}

// saveFile copies content to path, refusing more than maxBytes
func saveFile(path string, content io.Reader, maxBytes int64) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, domain.Errorf(domain.ErrStorage, "create file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(content, maxBytes+1))
	closeErr := dst.Close()
	switch {
	case err != nil:
		err = domain.Errorf(domain.ErrStorage, "save file: %w", err)
	case closeErr != nil:
		err = domain.Errorf(domain.ErrStorage, "save file: %w", closeErr)
	case n > maxBytes:
		err = domain.Errorf(domain.ErrValidation, "file too large, maximum size is %d bytes", maxBytes)
	case n == 0:
		err = domain.Errorf(domain.ErrValidation, "file is empty")
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

func pathSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, s)
}

// Process runs a PENDING document through extraction, chunking and indexing.
// Pipeline failures are recorded on the document rather than returned. An
// INDEXED document is returned unchanged.
func (s *IngestService) Process(ctx context.Context, id string) (*domain.ManualDocument, error) {
	unlock, ok := s.locks.TryLock(id)
	if !ok {
		return nil, domain.Errorf(domain.ErrConflict, "document %s is already being processed", id)
	}
	defer unlock()
	return s.process(ctx, id)
}

// process does the work of Process; the caller holds the document lock.
// Once the record is PROCESSING, every later write runs on a context the
// caller cannot cancel so the document never stays PROCESSING.
func (s *IngestService) process(ctx context.Context, id string) (*domain.ManualDocument, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "document %s", id)
	}

	switch doc.Status {
	case domain.DocumentStatusIndexed:
		return doc, nil
	case domain.DocumentStatusProcessing:
		return nil, domain.Errorf(domain.ErrConflict, "document %s is already being processed", id)
	case domain.DocumentStatusFailed:
		return nil, domain.Errorf(domain.ErrConflict, "document %s failed, reprocess it instead", id)
	case domain.DocumentStatusPending:
	}

	if err := transition(doc, domain.DocumentStatusProcessing); err != nil {
		return nil, err
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("processing document", zap.String("document_id", id), zap.String("filename", doc.Filename))

	count, pageCount, err := s.indexDocument(ctx, doc)

	ctx, cancel := detach(ctx)
	defer cancel()
	if err != nil {
		return s.fail(ctx, doc, err), nil
	}

	if err := transition(doc, domain.DocumentStatusIndexed); err != nil {
		return s.fail(ctx, doc, err), nil
	}
	now := time.Now().UTC()
	doc.ChunksCount = count
	doc.PageCount = pageCount
	doc.ErrorMessage = ""
	doc.ProcessedAt = &now
	if err := s.docs.Save(ctx, doc); err != nil {
		s.audit.record(ctx, s.purge(ctx, id))
		return s.fail(ctx, doc, err), nil
	}

	s.logger.Info("document indexed", zap.String("document_id", id), zap.Int("chunks", count))

	if _, err := s.catalog.Update(ctx, doc.DeviceType, doc.Brand, doc.Model); err != nil {
		s.audit.record(ctx, domain.SideEffect{Operation: domain.OpCatalogUpdate, SubjectID: id, Err: err})
	} else {
		s.audit.record(ctx, domain.SideEffect{Operation: domain.OpCatalogUpdate, SubjectID: id})
	}
	return doc, nil
}

// indexDocument extracts, cleans and chunks the document and hands the chunks to the
// vector index. It returns the stored chunk count and the page count.
func (s *IngestService) indexDocument(ctx context.Context, doc *domain.ManualDocument) (int, int, error) {
	res, err := s.extractor.Extract(ctx, doc.FilePath, doc.FileType)
	if err != nil {
		return 0, 0, err
	}

	text := chunker.Clean(res.Text)
	if n := len([]rune(text)); n < s.cfg.RAG.MinTextLength {
		return 0, 0, domain.Errorf(domain.ErrValidation,
			"insufficient text extracted from document: %d characters, need at least %d", n, s.cfg.RAG.MinTextLength)
	}

	detected := chunker.DetectMetadata(text)
	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, 0, domain.Errorf(domain.ErrValidation, "document produced no chunks")
	}

	model := doc.Model
	if model == "" {
		model = domain.UnknownModel
	}

	metadatas := make([]map[string]any, len(chunks))
	for i := range chunks {
		md := map[string]any{
			domain.MetadataKeySourceFile:  doc.Filename,
			domain.MetadataKeyDeviceType:  doc.DeviceType,
			domain.MetadataKeyBrand:       doc.Brand,
			domain.MetadataKeyModel:       model,
			domain.MetadataKeyDocumentID:  doc.ID,
			domain.MetadataKeyChunkIndex:  i,
			domain.MetadataKeyTotalChunks: len(chunks),
		}
		if res.PageCount > 0 {
			md[domain.MetadataKeyPageCount] = res.PageCount
		}
		for k, v := range detected.Fields() {
			md[k] = v
		}
		metadatas[i] = md
	}

	s.logger.Debug("split document",
		zap.String("document_id", doc.ID),
		zap.String("method", res.Method),
		zap.Int("chunks", len(chunks)))

	added, err := s.index.Add(ctx, chunks, metadatas)
	if err != nil {
		cctx, cancel := detach(ctx)
		defer cancel()
		s.audit.record(cctx, s.purge(cctx, doc.ID))
		return 0, 0, err
	}
	if added <= 0 {
		return 0, 0, domain.Errorf(domain.ErrDependency, "vector index stored no chunks")
	}
	return added, res.PageCount, nil
}

// fail marks the document FAILED. It re-reads the record first and falls back
// to the in-memory copy; a failure to persist is logged, never returned.
func (s *IngestService) fail(ctx context.Context, doc *domain.ManualDocument, cause error) *domain.ManualDocument {
	s.logger.Error("document processing failed", zap.String("document_id", doc.ID), zap.Error(cause))

	current, err := s.docs.Get(ctx, doc.ID)
	if err != nil || current == nil {
		s.logger.Error("failed to reload document", zap.String("document_id", doc.ID), zap.Error(err))
		current = doc
	}

	current.Status = domain.DocumentStatusFailed
	current.ErrorMessage = cause.Error()
	current.ChunksCount = 0
	current.ProcessedAt = nil
	if err := s.docs.Save(ctx, current); err != nil {
		s.logger.Error("failed to update document status", zap.String("document_id", doc.ID), zap.Error(err))
	}
	return current
}

// detach returns a context that outlives the caller's cancellation but is
// still bounded by cleanupTimeout
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// transition moves doc to next, refusing moves the lifecycle does not allow
func transition(doc *domain.ManualDocument, next domain.DocumentStatus) error {
	if !doc.Status.CanTransition(next) {
		return domain.Errorf(domain.ErrConflict, "document %s cannot move from %s to %s", doc.ID, doc.Status, next)
	}
	doc.Status = next
	return nil
}

func (s *IngestService) purge(ctx context.Context, id string) domain.SideEffect {
	return domain.SideEffect{
		Operation: domain.OpVectorPurge,
		SubjectID: id,
		Err:       s.index.DeleteByDocumentID(ctx, id),
	}
}

// Reprocess retries a FAILED document owned by accountID. The status is
// read under the document lock and the lock is held until processing ends.
func (s *IngestService) Reprocess(ctx context.Context, accountID, id string) (*domain.ManualDocument, error) {
	unlock, ok := s.locks.TryLock(id)
	if !ok {
		return nil, domain.Errorf(domain.ErrConflict, "document %s is already being processed", id)
	}
	defer unlock()

	doc, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusFailed {
		return nil, domain.Errorf(domain.ErrConflict, "document %s is %s, only failed documents can be reprocessed", id, doc.Status)
	}

	s.audit.record(ctx, s.purge(ctx, id))

	if err := transition(doc, domain.DocumentStatusPending); err != nil {
		return nil, err
	}
	doc.ErrorMessage = ""
	doc.ChunksCount = 0
	doc.ProcessedAt = nil
	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, err
	}

	return s.process(ctx, id)
}

// List returns the caller's documents, newest first
func (s *IngestService) List(ctx context.Context, accountID string, filter domain.DocumentFilter) ([]*domain.ManualDocument, error) {
	filter.UploadedBy = accountID
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultDocumentLimit
	}
	return s.docs.List(ctx, filter)
}

// Get returns a document owned by accountID
func (s *IngestService) Get(ctx context.Context, accountID, id string) (*domain.ManualDocument, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "document %s", id)
	}
	if doc.UploadedBy != accountID {
		return nil, domain.Errorf(domain.ErrForbidden, "document %s", id)
	}
	return doc, nil
}

// Delete removes a document owned by accountID. Removing the stored file and
// the indexed chunks is best-effort; their outcomes are returned and audited.
func (s *IngestService) Delete(ctx context.Context, accountID, id string) ([]domain.SideEffect, error) {
	doc, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	unlock, ok := s.locks.TryLock(id)
	if !ok {
		return nil, domain.Errorf(domain.ErrConflict, "document %s is being processed", id)
	}
	defer unlock()

	fileErr := os.Remove(doc.FilePath)
	if errors.Is(fileErr, os.ErrNotExist) {
		fileErr = nil
	}
	effects := []domain.SideEffect{
		{Operation: domain.OpFileDelete, SubjectID: id, Err: fileErr},
		{Operation: domain.OpVectorDelete, SubjectID: id, Err: s.index.DeleteByDocumentID(ctx, id)},
	}

	s.audit.record(ctx, effects...)

	if err := s.docs.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("document deleted", zap.String("document_id", id))
	return effects, nil
}
