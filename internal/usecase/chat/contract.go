package chat

import (
	"context"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/llm"
)

// Retriever searches the main collection for passages relevant to a query.
type Retriever interface {
	SearchMain(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Memory manages per-user conversation logs.
type Memory interface {
	GetContext(userID string) domain.ConversationContext
	AddInteraction(userID, question, answer string)
	ClearHistory(userID string)
}
