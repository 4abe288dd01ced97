package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatusRoundTrip(t *testing.T) {
	for _, s := range []DocumentStatus{
		DocumentStatusPending,
		DocumentStatusProcessing,
		DocumentStatusIndexed,
		DocumentStatusFailed,
	} {
		parsed, err := ParseDocumentStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseDocumentStatus("ready")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDocumentStatusJSON(t *testing.T) {
	doc := ManualDocument{ID: "d1", Status: DocumentStatusIndexed}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"indexed"`)
	assert.NotContains(t, string(data), "FilePath")

	var back ManualDocument
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, DocumentStatusIndexed, back.Status)
}

func TestDocumentStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to DocumentStatus
		allowed  bool
	}{
		{DocumentStatusPending, DocumentStatusProcessing, true},
		{DocumentStatusPending, DocumentStatusIndexed, false},
		{DocumentStatusProcessing, DocumentStatusIndexed, true},
		{DocumentStatusProcessing, DocumentStatusFailed, true},
		{DocumentStatusIndexed, DocumentStatusProcessing, false},
		{DocumentStatusIndexed, DocumentStatusFailed, false},
		{DocumentStatusFailed, DocumentStatusPending, true},
		{DocumentStatusFailed, DocumentStatusIndexed, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		err  error
		kind string
	}{
		{Errorf(ErrValidation, "query is required"), KindValidation},
		{Errorf(ErrNotFound, "conversation %s", "c1"), KindNotFound},
		{Errorf(ErrForbidden, "not yours"), KindForbidden},
		{Errorf(ErrExtraction, "empty pdf: %w", cause), KindExtraction},
		{Errorf(ErrDependency, "language model: %w", cause), KindDependency},
		{fmt.Errorf("%w: %w", ErrDependency, ErrTimeout), KindTimeout},
		{Errorf(ErrStorage, "insert: %w", cause), KindStorage},
		{Errorf(ErrConflict, "busy"), KindConflict},
		{cause, KindInternal},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.kind, KindOf(tc.err), tc.err.Error())
	}
	assert.Equal(t, "", KindOf(nil))
}

func TestErrorfKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Errorf(ErrStorage, "save document: %w", cause)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage failure: save document: disk full", err.Error())
}

func TestDeviceCategoryAddDeviceIsIdempotent(t *testing.T) {
	cat := &DeviceCategory{Name: "Refrigerator"}

	assert.True(t, cat.AddDevice("Samsung", "RF28R7351SR"))
	assert.False(t, cat.AddDevice("Samsung", "RF28R7351SR"))
	assert.False(t, cat.AddDevice("Samsung", ""))
	assert.True(t, cat.AddDevice("LG", ""))
	assert.False(t, cat.AddDevice("LG", ""))

	assert.Equal(t, []string{"Samsung", "LG"}, cat.Brands)
	assert.Equal(t, []string{"RF28R7351SR"}, cat.Models["Samsung"])
	assert.Empty(t, cat.Models["LG"])
}
