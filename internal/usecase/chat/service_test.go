package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/domain"
)

func newTestService(retriever *mockRetriever, generator *mockGenerator, memory *mockMemory) *Service {
	return New(retriever, generator, memory, Options{TopK: 3, Temperature: 0.7, MaxTokens: 512}, zap.NewNop())
}

func TestProcessQuery_HappyPath(t *testing.T) {
	retriever := &mockRetriever{hits: []domain.SearchResult{
		{Content: "relevant passage"},
	}}
	generator := &mockGenerator{text: "the answer"}
	memory := newMockMemory()
	s := newTestService(retriever, generator, memory)

	answer, err := s.ProcessQuery(context.Background(), "u1", "what is it?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "the answer" {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(generator.lastPrompt, "relevant passage") {
		t.Error("prompt missing retrieved passage")
	}
	if !strings.Contains(generator.lastPrompt, "what is it?") {
		t.Error("prompt missing user question")
	}
	if generator.lastOpts.System == "" {
		t.Error("system persona not set")
	}
	if len(memory.added) != 1 || memory.added[0].answer != "the answer" {
		t.Errorf("interaction not recorded: %+v", memory.added)
	}
}

func TestProcessQuery_IncludesHistory(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{text: "ok"}
	memory := newMockMemory()
	memory.contexts["u1"] = domain.ConversationContext{
		UserID:      "u1",
		HistoryText: "User: earlier question\nAssistant: earlier answer\n\n",
	}
	s := newTestService(retriever, generator, memory)

	if _, err := s.ProcessQuery(context.Background(), "u1", "follow-up"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(generator.lastPrompt, "earlier question") {
		t.Error("prompt missing conversation history")
	}
}

func TestProcessQuery_ClearHistoryCommand(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{text: "should not be used"}
	memory := newMockMemory()
	s := newTestService(retriever, generator, memory)

	answer, err := s.ProcessQuery(context.Background(), "u1", "  Clear History ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != clearedResponse {
		t.Errorf("answer = %q", answer)
	}
	if len(memory.cleared) != 1 || memory.cleared[0] != "u1" {
		t.Errorf("history not cleared: %v", memory.cleared)
	}
	if retriever.calls != 0 {
		t.Error("retrieval ran for a clear-history command")
	}
	if len(memory.added) != 0 {
		t.Error("clear-history command recorded as an interaction")
	}
}

func TestProcessQuery_RetrievalFailureDegrades(t *testing.T) {
	retriever := &mockRetriever{err: errors.New("store down")}
	generator := &mockGenerator{text: "general answer"}
	memory := newMockMemory()
	s := newTestService(retriever, generator, memory)

	answer, err := s.ProcessQuery(context.Background(), "u1", "question")
	if err != nil {
		t.Fatalf("retrieval failure should not fail the query: %v", err)
	}
	if answer != "general answer" {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(generator.lastPrompt, "No reference material") {
		t.Error("prompt missing no-context fallback instruction")
	}
}

func TestProcessQuery_NoHitsUsesFallbackPrompt(t *testing.T) {
	retriever := &mockRetriever{hits: nil}
	generator := &mockGenerator{text: "ok"}
	s := newTestService(retriever, generator, newMockMemory())

	if _, err := s.ProcessQuery(context.Background(), "u1", "obscure question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(generator.lastPrompt, "No reference material") {
		t.Error("prompt missing no-context fallback instruction")
	}
}

func TestProcessQuery_GenerationFailurePropagates(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{err: errors.New("all providers down")}
	memory := newMockMemory()
	s := newTestService(retriever, generator, memory)

	if _, err := s.ProcessQuery(context.Background(), "u1", "question"); err == nil {
		t.Fatal("expected generation error")
	}
	if len(memory.added) != 0 {
		t.Error("failed exchange recorded in history")
	}
}
