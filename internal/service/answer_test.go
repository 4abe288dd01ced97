package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildContext(t *testing.T) {
	page := 12
	ctx := BuildContext([]RetrievedChunk{
		{Content: "Clean the filter.", SourceFile: "washer.pdf", PageNumber: &page},
		{Content: "Check the hose.", SourceFile: "washer.txt"},
	})

	assert.Equal(t, "[Source: washer.pdf, Page: 12]\nClean the filter.\n\n[Source: washer.txt, Page: N/A]\nCheck the hose.", ctx)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("CONTEXT", "QUESTION")

	assert.True(t, strings.HasPrefix(prompt, "You are an expert device repair technician"))
	assert.Contains(t, prompt, "Context from device manuals:\nCONTEXT\n\nUser Question: QUESTION\n")
	assert.NotContains(t, prompt, "{context}")
	assert.NotContains(t, prompt, "{question}")
}

func TestCitations(t *testing.T) {
	var chunks []RetrievedChunk
	for i := 0; i < 7; i++ {
		chunks = append(chunks, RetrievedChunk{
			Content:        fmt.Sprintf("chunk %d", i),
			SourceFile:     "m.pdf",
			RelevanceScore: 0.87654,
		})
	}
	chunks[0].Content = strings.Repeat("ü", 250)
	chunks[1].Content = strings.Repeat("x", 200)

	citations := Citations(chunks)
	require.Len(t, citations, 5)

	assert.Equal(t, strings.Repeat("ü", 200)+"...", citations[0].Content)
	assert.Equal(t, strings.Repeat("x", 200), citations[1].Content)
	assert.Equal(t, "chunk 4", citations[4].Content)
	for _, c := range citations {
		assert.Equal(t, 0.877, c.RelevanceScore)
	}

	assert.Empty(t, Citations(nil))
}

func TestSynthesizeFallback(t *testing.T) {
	model := &scriptedLLM{}
	s := NewSynthesizer(model, zap.NewNop())

	answer, err := s.Synthesize(context.Background(), "why?", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, answer.Text)
	assert.Equal(t, []domain.Citation{}, answer.Sources)
	assert.Zero(t, model.calls())
}

func TestSynthesizeModelErrors(t *testing.T) {
	chunks := []RetrievedChunk{{Content: "c", SourceFile: "m.pdf", RelevanceScore: 0.9}}

	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"plain error", errors.New("boom"), domain.KindDependency},
		{"timeout", domain.Errorf(domain.ErrTimeout, "language model"), domain.KindTimeout},
		{"dependency", domain.Errorf(domain.ErrDependency, "rate limited"), domain.KindDependency},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSynthesizer(&scriptedLLM{err: tc.err}, zap.NewNop())
			answer, err := s.Synthesize(context.Background(), "q", chunks)
			assert.Nil(t, answer)
			assert.Equal(t, tc.kind, domain.KindOf(err))
		})
	}
}
