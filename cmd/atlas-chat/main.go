// Command atlas-chat is an interactive terminal session against the chat
// service, talking to the same storage and providers as the server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/chunker"
	"github.com/atlas-chat/atlas/internal/config"
	"github.com/atlas-chat/atlas/internal/llm"
	"github.com/atlas-chat/atlas/internal/loader"
	logpkg "github.com/atlas-chat/atlas/internal/logger"
	"github.com/atlas-chat/atlas/internal/memory"
	"github.com/atlas-chat/atlas/internal/metrics"
	"github.com/atlas-chat/atlas/internal/registry"
	"github.com/atlas-chat/atlas/internal/store"
	boltStore "github.com/atlas-chat/atlas/internal/store/bolt"
	redisStore "github.com/atlas-chat/atlas/internal/store/redis"
	openaiEmb "github.com/atlas-chat/atlas/internal/transport/openai"
	chatuc "github.com/atlas-chat/atlas/internal/usecase/chat"
)

func main() {
	userID := flag.String("user", "terminal", "user id for the conversation log")
	flag.Parse()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// Keep zap output out of the interactive session unless asked for.
	level := cfg.Logging.Level
	if level == "" {
		level = "error"
	}
	logger, err := logpkg.New(env, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to create storage backend", zap.Error(err))
	}
	defer backend.Close()

	if err := backend.WaitForReady(ctx, time.Duration(cfg.Storage.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Storage not ready", zap.Error(err))
	}

	metrics.Register()

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	ld := loader.New(logger, cfg.Ingest.Ignore)
	splitter := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	reg := registry.New(backend, embedder, embedder.Fingerprint(), ld, splitter, logger).
		WithMain(cfg.Chat.MainCollection)

	mem, err := memory.New(cfg.Chat.MemoryDir, cfg.Chat.MaxTurns, logger)
	if err != nil {
		logger.Fatal("Failed to create memory manager", zap.Error(err))
	}

	chain := llm.NewChain(buildProviders(cfg.LLM.Providers), logger)
	chat := chatuc.New(reg, chain, mem, chatuc.Options{
		TopK:        cfg.Chat.TopK,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)

	fmt.Println("atlas chat. Type a question, \"clear history\" to reset, or \"exit\" to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}

		answer, err := chat.ProcessQuery(ctx, *userID, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(answer)
		fmt.Println()
	}

	fmt.Println("bye")
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
