package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates bad or missing input, rejected before side effects
	ErrValidation = errors.New("invalid request")
	// ErrNotFound indicates an unknown conversation, document or message id
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden indicates the caller does not own the resource
	ErrForbidden = errors.New("not authorized")
	// ErrExtraction indicates no usable text could be extracted from an upload
	ErrExtraction = errors.New("text extraction failed")
	// ErrDependency indicates the vector index or language model failed
	ErrDependency = errors.New("dependency failure")
	// ErrTimeout indicates a dependency did not answer in time; the call may be retried
	ErrTimeout = errors.New("dependency timed out")
	// ErrStorage indicates a persistence failure
	ErrStorage = errors.New("storage failure")
	// ErrConflict indicates the resource is busy or in the wrong state
	ErrConflict = errors.New("conflict")
)

// Errorf wraps kind with a formatted detail. Any %w verbs in format are kept in the chain.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}

// Kind names used in structured error responses
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindForbidden  = "forbidden"
	KindExtraction = "extraction"
	KindDependency = "dependency"
	KindTimeout    = "timeout"
	KindStorage    = "storage"
	KindConflict   = "conflict"
	KindInternal   = "internal"
)

// KindOf returns the stable kind of err. Unrecognised errors are internal.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrDependency):
		return KindDependency
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindInternal
	}
}
