package domain

import "time"

// Outcome of a best-effort side effect
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// SideEffect is the result of a compensating or best-effort operation that
// accompanies a primary one. A failed side effect never fails the primary operation.
type SideEffect struct {
	Operation string `json:"operation"`
	SubjectID string `json:"subject_id"`
	Err       error  `json:"-"`
}

// OK reports whether the side effect succeeded
func (s SideEffect) OK() bool { return s.Err == nil }

// AuditEvent is a persisted record of a side effect
type AuditEvent struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	SubjectID string    `json:"subject_id"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Side effect operation names
const (
	OpCatalogUpdate = "catalog_update"
	OpFileDelete    = "file_delete"
	OpVectorDelete  = "vector_delete"
	OpVectorPurge   = "vector_purge"
)
