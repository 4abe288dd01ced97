package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEngineHealth(t *testing.T) {
	engine := newTestEngine(t, &scriptedLLM{})

	report := engine.Health(context.Background())
	assert.Equal(t, HealthReport{Status: "healthy", Database: "ok", VectorIndex: "ok"}, report)
}

func TestEngineHealthDegraded(t *testing.T) {
	cfg := testConfig(t)
	engine, err := NewEngine(context.Background(), cfg, zap.NewNop(), WithLanguageModel(&scriptedLLM{}))
	require.NoError(t, err)
	require.NoError(t, engine.DB.Close())

	report := engine.Health(context.Background())
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unreachable", report.Database)
	assert.Equal(t, "ok", report.VectorIndex)
}

func TestNewEngineRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vector.Backend = "chroma"

	_, err := NewEngine(context.Background(), cfg, zap.NewNop(), WithLanguageModel(&scriptedLLM{}))
	assert.Error(t, err)
}
