// Command atlas-ingest loads a directory of documents into a named
// collection, creating the collection on first run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/chunker"
	"github.com/atlas-chat/atlas/internal/config"
	"github.com/atlas-chat/atlas/internal/loader"
	logpkg "github.com/atlas-chat/atlas/internal/logger"
	"github.com/atlas-chat/atlas/internal/metrics"
	"github.com/atlas-chat/atlas/internal/registry"
	"github.com/atlas-chat/atlas/internal/store"
	boltStore "github.com/atlas-chat/atlas/internal/store/bolt"
	redisStore "github.com/atlas-chat/atlas/internal/store/redis"
	openaiEmb "github.com/atlas-chat/atlas/internal/transport/openai"
)

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

func main() {
	var (
		dataDir    = flag.String("data-dir", "", "directory with documents to ingest (required)")
		collection = flag.String("collection", registry.MainCollection, "target collection name")
	)
	flag.Parse()

	if *dataDir == "" {
		fmt.Fprintln(os.Stderr, "usage: atlas-ingest --data-dir <dir> [--collection <name>]")
		os.Exit(2)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
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
	reg := registry.New(backend, embedder, embedder.Fingerprint(), ld, splitter, logger)

	start := time.Now()
	n, err := reg.Ingest(ctx, *collection, *dataDir)
	if err != nil {
		logger.Fatal("Ingestion failed",
			zap.String("collection", *collection),
			zap.String("data_dir", *dataDir),
			zap.Error(err),
		)
	}

	logger.Info("Ingestion complete",
		zap.String("collection", *collection),
		zap.String("data_dir", *dataDir),
		zap.Int("chunks", n),
		zap.Duration("took", time.Since(start)),
	)
}
