package vectorindex

import (
	"context"
	"testing"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPayloadRoundTrip(t *testing.T) {
	fields := map[string]any{
		payloadTextKey:                "Clean the drain filter.",
		domain.MetadataKeySourceFile:  "washer.pdf",
		domain.MetadataKeyChunkIndex:  3,
		domain.MetadataKeyTotalChunks: int64(4),
		domain.MetadataKeyPageNumber:  12,
		"score_hint":                  0.25,
		"has_error_codes":             true,
		"unset":                       nil,
	}

	payload, err := qdrant.TryValueMap(fields)
	require.NoError(t, err)

	out := fromPayload(payload)
	assert.Equal(t, "Clean the drain filter.", out[payloadTextKey])
	assert.Equal(t, "washer.pdf", out[domain.MetadataKeySourceFile])
	assert.Equal(t, 3, out[domain.MetadataKeyChunkIndex], "integers come back as int")
	assert.Equal(t, 4, out[domain.MetadataKeyTotalChunks])
	assert.Equal(t, 12, out[domain.MetadataKeyPageNumber])
	assert.Equal(t, 0.25, out["score_hint"])
	assert.Equal(t, true, out["has_error_codes"])
	assert.NotContains(t, out, "unset")
}

func TestMatchFilter(t *testing.T) {
	filter := matchFilter(map[string]string{
		domain.MetadataKeyDeviceType: "washing_machine",
		domain.MetadataKeyBrand:      "Samsung",
	})

	require.Len(t, filter.GetMust(), 2)
	got := make(map[string]string)
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		require.NotNil(t, field)
		got[field.GetKey()] = field.GetMatch().GetKeyword()
	}
	assert.Equal(t, map[string]string{
		domain.MetadataKeyDeviceType: "washing_machine",
		domain.MetadataKeyBrand:      "Samsung",
	}, got)

	assert.Empty(t, matchFilter(nil).GetMust())
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 2.25}, toFloat32([]float64{0.5, -1, 2.25}))
	assert.Empty(t, toFloat32(nil))
}

func TestNewQdrantRejectsBadDimension(t *testing.T) {
	_, err := NewQdrant(context.Background(), QdrantConfig{Host: "localhost", Port: 6334, Collection: "manuals"},
		&tableEmbedder{}, zap.NewNop())
	assert.Error(t, err)
}
