// Package registry owns the process-wide mapping from collection name to
// loaded vector collection. A collection is loaded once per process and
// cached; loads and creates for the same name are serialized per name while
// different names proceed independently.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/chunker"
	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/loader"
	"github.com/atlas-chat/atlas/internal/store"
)

// MainCollection is the default collection the chat flow retrieves from.
const MainCollection = "main"

// Registry caches loaded collections keyed by name for the process lifetime.
// No invalidation: a collection once loaded is assumed stable even if the
// durable copy is modified externally.
type Registry struct {
	backend     store.Backend
	embedder    domain.Embedder
	fingerprint domain.EmbeddingFingerprint
	loader      *loader.Loader
	splitter    *chunker.Splitter
	logger      *zap.Logger
	main        string

	mu          sync.Mutex
	collections map[string]*store.Collection
	locks       map[string]*sync.Mutex
}

// New creates a Registry bound to one backend and one embedding function.
func New(
	backend store.Backend,
	embedder domain.Embedder,
	fingerprint domain.EmbeddingFingerprint,
	ld *loader.Loader,
	splitter *chunker.Splitter,
	logger *zap.Logger,
) *Registry {
	return &Registry{
		backend:     backend,
		embedder:    embedder,
		fingerprint: fingerprint,
		loader:      ld,
		splitter:    splitter,
		logger:      logger,
		main:        MainCollection,
		collections: make(map[string]*store.Collection),
		locks:       make(map[string]*sync.Mutex),
	}
}

// WithMain overrides the main chat collection name.
func (r *Registry) WithMain(name string) *Registry {
	if name != "" {
		r.main = name
	}
	return r
}

// nameLock returns the mutex serializing operations on one collection name.
func (r *Registry) nameLock(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locks[name]; ok {
		return l
	}
	l := &sync.Mutex{}
	r.locks[name] = l
	return l
}

func (r *Registry) cached(name string) (*store.Collection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[name]
	return c, ok
}

func (r *Registry) cache(name string, c *store.Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[name] = c
}

// Get returns the collection if it is cached or persisted.
// domain.ErrCollectionNotFound when it has never been created;
// domain.ErrEmbedderMismatch when the persisted copy was built with a
// different embedding function.
func (r *Registry) Get(ctx context.Context, name string) (*store.Collection, error) {
	if c, ok := r.cached(name); ok {
		return c, nil
	}

	lock := r.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	if c, ok := r.cached(name); ok {
		return c, nil
	}
	return r.load(ctx, name)
}

// load verifies the persisted fingerprint and caches the collection.
// Caller holds the name lock.
func (r *Registry) load(ctx context.Context, name string) (*store.Collection, error) {
	persisted, err := r.backend.Fingerprint(ctx, name)
	if err != nil {
		return nil, err
	}
	if !persisted.Equal(r.fingerprint) {
		return nil, fmt.Errorf("%w: collection %s persisted with %s, configured %s",
			domain.ErrEmbedderMismatch, name, persisted, r.fingerprint)
	}

	c := store.NewCollection(name, r.backend, r.embedder)
	r.cache(name, c)
	r.logger.Info("collection loaded", zap.String("collection", name))
	return c, nil
}

// CreateOrLoad returns an existing collection, or creates one from sourceDir.
// A missing collection with an empty sourceDir is domain.ErrNoSource; a
// sourceDir that yields no chunks is domain.ErrNoData.
func (r *Registry) CreateOrLoad(ctx context.Context, name, sourceDir string) (*store.Collection, error) {
	if c, ok := r.cached(name); ok {
		return c, nil
	}

	lock := r.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	if c, ok := r.cached(name); ok {
		return c, nil
	}

	c, err := r.load(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		return nil, err
	}

	if sourceDir == "" {
		return nil, fmt.Errorf("%w: collection %s does not exist", domain.ErrNoSource, name)
	}
	return r.create(ctx, name, sourceDir)
}

// create builds a new collection from a document directory.
// Caller holds the name lock.
func (r *Registry) create(ctx context.Context, name, sourceDir string) (*store.Collection, error) {
	docs := r.loader.Load(sourceDir)
	chunks := r.splitter.Split(docs)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: directory %s", domain.ErrNoData, sourceDir)
	}

	if err := r.backend.SetFingerprint(ctx, name, r.fingerprint); err != nil {
		return nil, fmt.Errorf("persist fingerprint: %w", err)
	}

	c := store.NewCollection(name, r.backend, r.embedder)
	if err := c.Add(ctx, chunks); err != nil {
		return nil, err
	}

	r.cache(name, c)
	r.logger.Info("collection created",
		zap.String("collection", name),
		zap.String("source", sourceDir),
		zap.Int("chunks", len(chunks)))
	return c, nil
}

// Ingest appends the documents under sourceDir to a collection, creating it
// first if needed. Returns the number of chunks inserted. Re-ingesting the
// same documents duplicates them; dedup is the caller's policy.
func (r *Registry) Ingest(ctx context.Context, name, sourceDir string) (int, error) {
	if sourceDir == "" {
		return 0, fmt.Errorf("%w: ingest needs a source directory", domain.ErrNoSource)
	}

	lock := r.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	c, ok := r.cached(name)
	if !ok {
		var err error
		c, err = r.load(ctx, name)
		if errors.Is(err, domain.ErrCollectionNotFound) {
			created, cerr := r.create(ctx, name, sourceDir)
			if cerr != nil {
				return 0, cerr
			}
			n, cntErr := created.Count(ctx)
			if cntErr != nil {
				return 0, cntErr
			}
			return n, nil
		}
		if err != nil {
			return 0, err
		}
	}

	docs := r.loader.Load(sourceDir)
	chunks := r.splitter.Split(docs)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: directory %s", domain.ErrNoData, sourceDir)
	}
	if err := c.Add(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Exists reports whether a collection has persisted state, without loading it.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	if _, ok := r.cached(name); ok {
		return true, nil
	}
	_, err := r.backend.Fingerprint(ctx, name)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Main returns the main chat collection.
func (r *Registry) Main(ctx context.Context) (*store.Collection, error) {
	return r.Get(ctx, r.main)
}

// SearchMain retrieves from the main collection.
func (r *Registry) SearchMain(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	return r.SearchIn(ctx, r.main, query, k)
}

// SearchIn retrieves from a named collection.
func (r *Registry) SearchIn(ctx context.Context, name, query string, k int) ([]domain.SearchResult, error) {
	return r.Search(ctx, name, query, k, nil)
}

// Search retrieves from a named collection with an optional exact-match
// metadata filter.
func (r *Registry) Search(
	ctx context.Context, name, query string, k int, filter map[string]string,
) ([]domain.SearchResult, error) {
	c, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, query, k, filter)
}

// Count reports how many chunks a named collection holds.
func (r *Registry) Count(ctx context.Context, name string) (int, error) {
	c, err := r.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return c.Count(ctx)
}
