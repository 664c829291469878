package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/chunker"
	"github.com/atlas-chat/atlas/internal/config"
	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/llm"
	"github.com/atlas-chat/atlas/internal/loader"
	logpkg "github.com/atlas-chat/atlas/internal/logger"
	"github.com/atlas-chat/atlas/internal/memory"
	"github.com/atlas-chat/atlas/internal/metrics"
	"github.com/atlas-chat/atlas/internal/registry"
	"github.com/atlas-chat/atlas/internal/store"
	boltStore "github.com/atlas-chat/atlas/internal/store/bolt"
	"github.com/atlas-chat/atlas/internal/store/embcache"
	redisStore "github.com/atlas-chat/atlas/internal/store/redis"
	chiTransport "github.com/atlas-chat/atlas/internal/transport/chi"
	openaiEmb "github.com/atlas-chat/atlas/internal/transport/openai"
	chatuc "github.com/atlas-chat/atlas/internal/usecase/chat"
	healthuc "github.com/atlas-chat/atlas/internal/usecase/health"
	reviewuc "github.com/atlas-chat/atlas/internal/usecase/review"
	"github.com/atlas-chat/atlas/internal/version"
)

// reviewCollection holds the grading rubric documents, when ingested.
const reviewCollection = "review"

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting atlas API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	backend, err := newBackend(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to create storage backend", zap.Error(err))
	}
	defer backend.Close()

	ctx := context.Background()
	if err := backend.WaitForReady(ctx, time.Duration(cfg.Storage.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Storage not ready", zap.Error(err))
	}
	logger.Info("Connected to storage")

	// Register embedding/generation metrics explicitly (no init())
	metrics.Register()

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache {
		embedder = embcache.New(base, backend, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	ld := loader.New(logger, cfg.Ingest.Ignore)
	splitter := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	reg := registry.New(backend, embedder, base.Fingerprint(), ld, splitter, logger).
		WithMain(cfg.Chat.MainCollection)

	mem, err := memory.New(cfg.Chat.MemoryDir, cfg.Chat.MaxTurns, logger)
	if err != nil {
		logger.Fatal("Failed to create memory manager", zap.Error(err))
	}

	chain := llm.NewChain(buildProviders(cfg.LLM.Providers), logger)
	logger.Info("Generation chain created", zap.Int("providers", len(cfg.LLM.Providers)))

	chatSvc := chatuc.New(reg, chain, mem, chatuc.Options{
		TopK:        cfg.Chat.TopK,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)
	reviewSvc := reviewuc.New(reg, chain, reviewCollection, cfg.Chat.TopK, cfg.LLM.MaxTokens, logger)
	healthSvc := healthuc.New(backend, base)

	server := chiTransport.NewServer(chatSvc, reviewSvc, mem, reg, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func newBackend(cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Driver {
	case "bolt":
		return boltStore.NewStore(cfg.Path)
	case "redis":
		return redisStore.NewStore(redisStore.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func buildProviders(configs []config.ProviderConfig) []llm.Provider {
	providers := make([]llm.Provider, 0, len(configs))
	for _, pc := range configs {
		switch pc.Name {
		case "openai":
			providers = append(providers, llm.NewOpenAIProvider(pc.APIKey, pc.BaseURL, pc.Model))
		case "anthropic":
			providers = append(providers, llm.NewAnthropicProvider(pc.APIKey, pc.BaseURL, pc.Model))
		}
	}
	return providers
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
