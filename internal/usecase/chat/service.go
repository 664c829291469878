// Package chat implements the conversational flow: retrieve, remember,
// generate.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/llm"
)

// clearCommand resets the user's conversation history instead of being
// answered as a question.
const clearCommand = "clear history"

// clearedResponse confirms a history reset.
const clearedResponse = "Done. Your conversation history has been cleared."

// Options tune the chat flow.
type Options struct {
	// TopK is how many passages retrieval returns.
	TopK int
	// Temperature and MaxTokens are passed through to generation.
	Temperature float32
	MaxTokens   int
}

// Service handles one user message end to end.
type Service struct {
	retriever Retriever
	generator Generator
	memory    Memory
	opts      Options
	logger    *zap.Logger
}

// New creates a chat Service.
func New(retriever Retriever, generator Generator, memory Memory, opts Options, logger *zap.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Service{
		retriever: retriever,
		generator: generator,
		memory:    memory,
		opts:      opts,
		logger:    logger,
	}
}

// ProcessQuery answers one user message. Retrieval failures degrade to an
// answer without reference material; generation failures propagate. The
// exchange is recorded in the user's history after a successful answer.
func (s *Service) ProcessQuery(ctx context.Context, userID, message string) (string, error) {
	message = strings.TrimSpace(message)

	if strings.EqualFold(message, clearCommand) {
		s.memory.ClearHistory(userID)
		return clearedResponse, nil
	}

	conv := s.memory.GetContext(userID)

	hits, err := s.retriever.SearchMain(ctx, message, s.opts.TopK)
	if err != nil {
		// A broken knowledge base should not silence the assistant.
		s.logger.Warn("retrieval failed, answering without reference material",
			zap.String("user_id", userID),
			zap.Error(err))
		hits = nil
	}

	prompt := buildPrompt(hits, conv.HistoryText, message)

	answer, err := s.generator.Generate(ctx, prompt, llm.Options{
		System:      systemPersona,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	s.memory.AddInteraction(userID, message, answer)
	return answer, nil
}
