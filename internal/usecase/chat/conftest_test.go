package chat

import (
	"context"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/llm"
)

type mockRetriever struct {
	hits  []domain.SearchResult
	err   error
	calls int
}

func (m *mockRetriever) SearchMain(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	m.calls++
	return m.hits, m.err
}

type mockGenerator struct {
	text       string
	err        error
	lastPrompt string
	lastOpts   llm.Options
}

func (m *mockGenerator) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	m.lastPrompt = prompt
	m.lastOpts = opts
	return m.text, m.err
}

type mockMemory struct {
	contexts map[string]domain.ConversationContext
	added    []struct{ userID, question, answer string }
	cleared  []string
}

func newMockMemory() *mockMemory {
	return &mockMemory{contexts: make(map[string]domain.ConversationContext)}
}

func (m *mockMemory) GetContext(userID string) domain.ConversationContext {
	return m.contexts[userID]
}

func (m *mockMemory) AddInteraction(userID, question, answer string) {
	m.added = append(m.added, struct{ userID, question, answer string }{userID, question, answer})
}

func (m *mockMemory) ClearHistory(userID string) {
	m.cleared = append(m.cleared, userID)
}
