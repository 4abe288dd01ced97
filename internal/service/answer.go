package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"go.uber.org/zap"
)

// FallbackAnswer is returned when no passage is relevant enough to ground an answer
const FallbackAnswer = "I don't have specific information about this issue in the available manuals. " +
	"I recommend checking the device's official manual or contacting customer support for assistance."

const (
	maxCitations       = 5
	citationExcerptLen = 200
)

const promptTemplate = `You are an expert device repair technician with years of experience troubleshooting various household appliances and electronics.

Using the manual excerpts provided below, provide clear, step-by-step troubleshooting instructions for the user's problem.

Context from device manuals:
{context}

User Question: {question}

Instructions for your response:
1. Start by diagnosing the most likely cause of the problem
2. Provide clear, numbered step-by-step troubleshooting instructions
3. Include any relevant safety warnings (electrical hazards, water damage risks, etc.)
4. Cite the specific manual section you're referencing
5. If the problem requires professional repair, clearly state this
6. If the provided context doesn't contain relevant information, honestly say "I don't have specific information about this in the available manuals" and provide general guidance if appropriate

Important:
- Be conversational and friendly, but professional
- Use simple language, avoiding technical jargon when possible
- If you use technical terms, briefly explain them
- Prioritize user safety above all else

Your response:`

// Answer is a generated reply and the passages it cites
type Answer struct {
	Text    string
	Sources []domain.Citation
}

// Synthesizer grounds language model answers in retrieved passages
type Synthesizer struct {
	llm    domain.LanguageModel
	logger *zap.Logger
}

// NewSynthesizer creates an answer synthesizer
func NewSynthesizer(llm domain.LanguageModel, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{llm: llm, logger: logger.Named("synthesizer")}
}

// Synthesize answers query from chunks. With no chunks the fallback answer is
// returned and the model is not called.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, chunks []RetrievedChunk) (*Answer, error) {
	if len(chunks) == 0 {
		return &Answer{Text: FallbackAnswer, Sources: []domain.Citation{}}, nil
	}

	prompt := BuildPrompt(BuildContext(chunks), query)

	text, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			err = domain.Errorf(domain.ErrDependency, "generate answer: %w", err)
		}
		s.logger.Error("answer generation failed", zap.Error(err))
		return nil, err
	}

	return &Answer{Text: text, Sources: Citations(chunks)}, nil
}

// BuildContext joins passages, each headed by its source file and page
func BuildContext(chunks []RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		page := "N/A"
		if c.PageNumber != nil {
			page = strconv.Itoa(*c.PageNumber)
		}
		parts[i] = fmt.Sprintf("[Source: %s, Page: %s]\n%s", c.SourceFile, page, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt fills the troubleshooting template
func BuildPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(promptTemplate)
}

// Citations returns the top passages with shortened excerpts and scores
// rounded to three decimals
func Citations(chunks []RetrievedChunk) []domain.Citation {
	n := len(chunks)
	if n > maxCitations {
		n = maxCitations
	}

	citations := make([]domain.Citation, n)
	for i := 0; i < n; i++ {
		c := chunks[i]
		excerpt := c.Content
		if short := truncate(excerpt, citationExcerptLen); short != excerpt {
			excerpt = short + "..."
		}
		citations[i] = domain.Citation{
			Content:        excerpt,
			SourceFile:     c.SourceFile,
			PageNumber:     c.PageNumber,
			SectionName:    c.SectionName,
			RelevanceScore: math.Round(c.RelevanceScore*1000) / 1000,
		}
	}
	return citations
}
