// Package review grades essays against rubric material retrieved from a
// dedicated collection. Grading runs at low temperature so repeated
// submissions of the same text score consistently.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/llm"
)

// gradingTemperature keeps scores stable across runs.
const gradingTemperature = 0.2

const gradingSystem = `You are an essay examiner. Grade the essay on a 0 to ` +
	`1000 scale using the provided rubric material. Structure your response ` +
	`as: the total score on the first line ("Score: N/1000"), then a short ` +
	`assessment per rubric criterion, then concrete suggestions for ` +
	`improvement.`

// Retriever searches a named collection for rubric passages.
type Retriever interface {
	SearchIn(ctx context.Context, name, query string, k int) ([]domain.SearchResult, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Service grades essays.
type Service struct {
	retriever  Retriever
	generator  Generator
	collection string
	topK       int
	maxTokens  int
	logger     *zap.Logger
}

// New creates a review Service reading rubric material from collection.
func New(retriever Retriever, generator Generator, collection string, topK, maxTokens int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		retriever:  retriever,
		generator:  generator,
		collection: collection,
		topK:       topK,
		maxTokens:  maxTokens,
		logger:     logger,
	}
}

// Grade scores one essay against its topic. An empty topic means the essay
// was written on a free topic. A missing rubric collection degrades to
// grading on general criteria; other retrieval failures degrade the same way.
func (s *Service) Grade(ctx context.Context, essay, topic string) (string, error) {
	essay = strings.TrimSpace(essay)
	if essay == "" {
		return "", fmt.Errorf("%w: empty essay", domain.ErrNoData)
	}

	hits, err := s.retriever.SearchIn(ctx, s.collection, essay, s.topK)
	if err != nil {
		if !errors.Is(err, domain.ErrCollectionNotFound) {
			s.logger.Warn("rubric retrieval failed, grading on general criteria",
				zap.String("collection", s.collection),
				zap.Error(err))
		}
		hits = nil
	}

	prompt := buildGradingPrompt(hits, essay, strings.TrimSpace(topic))

	feedback, err := s.generator.Generate(ctx, prompt, llm.Options{
		System:      gradingSystem,
		Temperature: gradingTemperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate feedback: %w", err)
	}
	return feedback, nil
}

func buildGradingPrompt(hits []domain.SearchResult, essay, topic string) string {
	var b strings.Builder

	if topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n\n", topic)
	} else {
		b.WriteString("Topic: open topic\n\n")
	}

	if len(hits) > 0 {
		b.WriteString("Rubric material:\n")
		for i, hit := range hits {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(hit.Content))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No rubric material is available. Grade on general " +
			"essay-writing criteria: argument structure, coherence, use of " +
			"evidence, and command of language.\n\n")
	}

	b.WriteString("Essay to grade:\n")
	b.WriteString(essay)
	return b.String()
}
