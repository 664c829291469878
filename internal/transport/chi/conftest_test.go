package chi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/domain"
	healthuc "github.com/atlas-chat/atlas/internal/usecase/health"
)

type mockChat struct {
	answer     string
	err        error
	lastUserID string
	lastMsg    string
}

func (m *mockChat) ProcessQuery(_ context.Context, userID, message string) (string, error) {
	m.lastUserID = userID
	m.lastMsg = message
	return m.answer, m.err
}

type mockReview struct {
	feedback  string
	err       error
	lastText  string
	lastTopic string
}

func (m *mockReview) Grade(_ context.Context, essay, topic string) (string, error) {
	m.lastText = essay
	m.lastTopic = topic
	return m.feedback, m.err
}

type mockHistory struct {
	contexts map[string]domain.ConversationContext
	cleared  []string
}

func (m *mockHistory) GetContext(userID string) domain.ConversationContext {
	if cc, ok := m.contexts[userID]; ok {
		return cc
	}
	return domain.ConversationContext{UserID: userID}
}

func (m *mockHistory) ClearHistory(userID string) {
	m.cleared = append(m.cleared, userID)
}

type mockCollections struct {
	ingested   int
	count      int
	results    []domain.SearchResult
	err        error
	lastName   string
	lastSource string
	lastQuery  string
	lastK      int
	lastFilter map[string]string
}

func (m *mockCollections) Ingest(_ context.Context, name, sourceDir string) (int, error) {
	m.lastName = name
	m.lastSource = sourceDir
	return m.ingested, m.err
}

func (m *mockCollections) Count(_ context.Context, name string) (int, error) {
	m.lastName = name
	return m.count, m.err
}

func (m *mockCollections) Search(
	_ context.Context, name, query string, k int, filter map[string]string,
) ([]domain.SearchResult, error) {
	m.lastName = name
	m.lastQuery = query
	m.lastK = k
	m.lastFilter = filter
	return m.results, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report {
	return m.report
}

type testServer struct {
	chat        *mockChat
	review      *mockReview
	history     *mockHistory
	collections *mockCollections
	health      *mockHealth
	handler     http.Handler
}

func newTestServer() *testServer {
	ts := &testServer{
		chat:    &mockChat{},
		review:  &mockReview{},
		history: &mockHistory{contexts: map[string]domain.ConversationContext{}},
		collections: &mockCollections{
			results: []domain.SearchResult{},
		},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"store": healthuc.CheckOK},
		}},
	}

	srv := NewServer(ts.chat, ts.review, ts.history, ts.collections, ts.health, zap.NewNop())
	r := chi.NewRouter()
	srv.Register(r)
	ts.handler = r
	return ts
}
