package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/metrics"
	"github.com/hyperjump/docqa/pkg/utils"
)

// Fixed answers returned instead of a model completion.
const (
	NoDocumentsAnswer         = "No documents have been uploaded yet. Upload a document before asking questions."
	NoRelevantDocumentsAnswer = "No relevant documents were found for this question."
	GenerationFailedAnswer    = "Error generating an answer from the language model."
)

// DefaultMaxDocumentChars bounds each passage's share of the prompt.
const DefaultMaxDocumentChars = 2000

// Passage is one retrieved document handed to the model.
type Passage struct {
	Title   string
	Content string
}

// BuildPrompt formats the question and passages into a prompt. Passages are labeled
// [1], [2], ... in order and truncated to maxChars runes each.
func BuildPrompt(query string, passages []Passage, maxChars int) string {
	var b strings.Builder
	b.WriteString("Use the following pieces of context to answer the question at the end.\n")
	b.WriteString("If the context does not contain the answer, say that you don't know.\n\n")
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d]", i+1)
		if p.Title != "" {
			fmt.Fprintf(&b, " %s", p.Title)
		}
		b.WriteString("\n")
		b.WriteString(utils.Truncate(p.Content, maxChars))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", query)
	return b.String()
}

// Synthesizer answers questions from passages through a Generator.
type Synthesizer struct {
	generator Generator
	maxChars  int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSynthesizer returns a synthesizer. maxChars <= 0 uses DefaultMaxDocumentChars.
func NewSynthesizer(g Generator, maxChars int, m *metrics.Metrics, logger *zap.Logger) *Synthesizer {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	return &Synthesizer{generator: g, maxChars: maxChars, metrics: m, logger: utils.OrNop(logger)}
}

// Synthesize returns the model's answer. It always returns a string: without passages
// the model is not called, and failures are reported as a fixed message.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, passages []Passage) string {
	if len(passages) == 0 {
		return NoRelevantDocumentsAnswer
	}
	text, err := s.generator.Generate(ctx, BuildPrompt(query, passages, s.maxChars))
	if err != nil {
		s.metrics.GenerationFailed()
		s.logger.Warn("answer generation failed", zap.Error(err))
		var se *StatusError
		if errors.As(err, &se) {
			return GenerationFailedAnswer
		}
		return fmt.Sprintf("Error connecting to the language model: %v", err)
	}
	return text
}
