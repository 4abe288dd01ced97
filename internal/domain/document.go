package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentStatus is the processing state of an uploaded manual
type DocumentStatus int

const (
	DocumentStatusPending DocumentStatus = iota
	DocumentStatusProcessing
	DocumentStatusIndexed
	DocumentStatusFailed
)

// String returns the externally visible status value
func (s DocumentStatus) String() string {
	switch s {
	case DocumentStatusPending:
		return "pending"
	case DocumentStatusProcessing:
		return "processing"
	case DocumentStatusIndexed:
		return "indexed"
	case DocumentStatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("DocumentStatus(%d)", int(s))
	}
}

// ParseDocumentStatus parses an external status value
func ParseDocumentStatus(v string) (DocumentStatus, error) {
	switch v {
	case "pending":
		return DocumentStatusPending, nil
	case "processing":
		return DocumentStatusProcessing, nil
	case "indexed":
		return DocumentStatusIndexed, nil
	case "failed":
		return DocumentStatusFailed, nil
	default:
		return 0, Errorf(ErrValidation, "invalid status %q, valid values: pending, processing, indexed, failed", v)
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// A failed document may be retried, which puts it back to pending.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case DocumentStatusPending:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusIndexed || next == DocumentStatusFailed
	case DocumentStatusIndexed:
		return false
	case DocumentStatusFailed:
		return next == DocumentStatusPending
	default:
		return false
	}
}

// MarshalJSON encodes the status as its string value
func (s DocumentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a string status value
func (s *DocumentStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseDocumentStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FileType is the declared type of an uploaded manual
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeText FileType = "txt"
)

// ManualDocument is an uploaded device manual and its processing state
type ManualDocument struct {
	ID           string         `json:"document_id"`
	Filename     string         `json:"filename"`
	DeviceType   string         `json:"device_type"`
	Brand        string         `json:"brand"`
	Model        string         `json:"model,omitempty"`
	FilePath     string         `json:"-"`
	FileType     FileType       `json:"file_type"`
	FileSize     int64          `json:"file_size"`
	PageCount    int            `json:"page_count,omitempty"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ChunksCount  int            `json:"chunks_count"`
	UploadedBy   string         `json:"-"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
}

// DocumentFilter narrows a document listing
type DocumentFilter struct {
	UploadedBy string
	DeviceType string
	Brand      string
	Status     *DocumentStatus
	Skip       int
	Limit      int
}

// UploadRequest carries the fields of a manual upload
type UploadRequest struct {
	Filename   string
	DeviceType string
	Brand      string
	Model      string
	Size       int64
}

// Chunk metadata keys stored in the vector index
const (
	MetadataKeyDocumentID    = "document_id"
	MetadataKeySourceFile    = "source_file"
	MetadataKeyDeviceType    = "device_type"
	MetadataKeyBrand         = "brand"
	MetadataKeyModel         = "model"
	MetadataKeyChunkIndex    = "chunk_index"
	MetadataKeyTotalChunks   = "total_chunks"
	MetadataKeyDetectedModel = "detected_model"
	MetadataKeySectionType   = "section_type"
	MetadataKeyPageNumber    = "page_number"
	MetadataKeySectionName   = "section_name"
	MetadataKeyPageCount     = "page_count"
)

// UnknownModel is stored as the model tag when the uploader gave none
const UnknownModel = "Unknown"
