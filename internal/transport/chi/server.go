package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/domain"
	healthuc "github.com/atlas-chat/atlas/internal/usecase/health"
)

const defaultSearchTopK = 5

// Error codes returned in the JSON error envelope.
const (
	codeBadRequest        = "bad_request"
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "collection_not_found"
	codeNoSource          = "no_source"
	codeNoData            = "no_data"
	codeEmbedderMismatch  = "embedder_mismatch"
	codeEmbeddingProvider = "embedding_provider_error"
	codeGenerationFailed  = "generation_failed"
	codeInternal          = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
}

type reviewRequest struct {
	Text  string `json:"text"`
	Topic string `json:"topic,omitempty"`
}

type historyResponse struct {
	UserID    string               `json:"user_id"`
	Exchanges []domain.Interaction `json:"exchanges"`
}

type ingestRequest struct {
	SourceDir string `json:"source_dir"`
}

type ingestResponse struct {
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
}

type collectionResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type searchRequest struct {
	Query  string            `json:"query"`
	TopK   int               `json:"top_k"`
	Filter map[string]string `json:"filter"`
}

type searchResultItem struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the chat service over HTTP.
type Server struct {
	chat          ChatService
	review        ReviewService
	history       History
	collections   Collections
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chat ChatService,
	review ReviewService,
	history History,
	collections Collections,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:        chat,
		review:      review,
		history:     history,
		collections: collections,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNoSource, http.StatusBadRequest, codeNoSource),
		sentinelHandler(domain.ErrNoData, http.StatusUnprocessableEntity, codeNoData),
		sentinelHandler(domain.ErrEmbedderMismatch, http.StatusConflict, codeEmbedderMismatch),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, codeGenerationFailed),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/chat", s.handleChat)
	r.Post("/review", s.handleReview)
	r.Get("/users/{userID}/history", s.handleGetHistory)
	r.Delete("/users/{userID}/history", s.handleClearHistory)
	r.Post("/collections/{name}/ingest", s.handleIngest)
	r.Get("/collections/{name}", s.handleGetCollection)
	r.Post("/collections/{name}/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleChat handles POST /chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "message is required")
		return
	}

	answer, err := s.chat.ProcessQuery(r.Context(), req.UserID, req.Message)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Success: true, Content: answer})
}

// handleReview handles POST /review.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	feedback, err := s.review.Grade(r.Context(), req.Text, req.Topic)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Success: true, Content: feedback})
}

// handleGetHistory handles GET /users/{userID}/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	cc := s.history.GetContext(userID)
	exchanges := cc.Exchanges
	if exchanges == nil {
		exchanges = []domain.Interaction{}
	}

	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, Exchanges: exchanges})
}

// handleClearHistory handles DELETE /users/{userID}/history.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.history.ClearHistory(chi.URLParam(r, "userID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleIngest handles POST /collections/{name}/ingest.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := s.collections.Ingest(r.Context(), name, req.SourceDir)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Collection: name, Chunks: n})
}

// handleGetCollection handles GET /collections/{name}.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	count, err := s.collections.Count(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, collectionResponse{Name: name, Count: count})
}

// handleSearch handles POST /collections/{name}/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultSearchTopK
	}

	results, err := s.collections.Search(r.Context(), name, req.Query, req.TopK, req.Filter)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			Content:  res.Content,
			Metadata: res.Metadata,
			Distance: res.Distance,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrNoSource,
		domain.ErrNoData,
		domain.ErrEmbedderMismatch,
		domain.ErrEmbeddingProvider,
		domain.ErrGenerationFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
