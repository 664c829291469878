package chi

import (
	"context"

	"github.com/atlas-chat/atlas/internal/domain"
	healthuc "github.com/atlas-chat/atlas/internal/usecase/health"
)

// ChatService answers user messages with retrieval-augmented generation.
type ChatService interface {
	ProcessQuery(ctx context.Context, userID, message string) (string, error)
}

// ReviewService grades essays.
type ReviewService interface {
	Grade(ctx context.Context, essay, topic string) (string, error)
}

// History exposes per-user conversation logs.
type History interface {
	GetContext(userID string) domain.ConversationContext
	ClearHistory(userID string)
}

// Collections exposes ingestion and retrieval over named collections.
type Collections interface {
	Ingest(ctx context.Context, name, sourceDir string) (int, error)
	Count(ctx context.Context, name string) (int, error)
	Search(ctx context.Context, name, query string, k int, filter map[string]string) ([]domain.SearchResult, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
