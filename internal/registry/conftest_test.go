package registry

import (
	"context"
	"sync"
	"time"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/store"
)

// fakeBackend is an in-memory store.Backend for registry tests.
type fakeBackend struct {
	mu           sync.Mutex
	kv           map[string][]byte
	fingerprints map[string]domain.EmbeddingFingerprint
	records      map[string][]store.Record
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		kv:           make(map[string][]byte),
		fingerprints: make(map[string]domain.EmbeddingFingerprint),
		records:      make(map[string][]store.Record),
	}
}

func (f *fakeBackend) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *fakeBackend) Fingerprint(_ context.Context, collection string) (domain.EmbeddingFingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp, ok := f.fingerprints[collection]
	if !ok {
		return domain.EmbeddingFingerprint{}, domain.ErrCollectionNotFound
	}
	return fp, nil
}

func (f *fakeBackend) SetFingerprint(_ context.Context, collection string, fp domain.EmbeddingFingerprint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fingerprints[collection] = fp
	return nil
}

func (f *fakeBackend) Insert(_ context.Context, collection string, records []store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[collection] = append(f.records[collection], records...)
	return nil
}

func (f *fakeBackend) Search(_ context.Context, collection string, _ []float32, k int, filter map[string]string) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fingerprints[collection]; !ok {
		return nil, domain.ErrCollectionNotFound
	}
	var hits []domain.SearchResult
	for _, r := range f.records[collection] {
		if !store.MatchesFilter(r.Metadata, filter) {
			continue
		}
		hits = append(hits, domain.SearchResult{Content: r.Content, Metadata: r.Metadata})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (f *fakeBackend) Count(_ context.Context, collection string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fingerprints[collection]; !ok {
		return 0, domain.ErrCollectionNotFound
	}
	return len(f.records[collection]), nil
}

func (f *fakeBackend) Drop(_ context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fingerprints, collection)
	delete(f.records, collection)
	return nil
}

func (f *fakeBackend) Ping(_ context.Context) error                          { return nil }
func (f *fakeBackend) WaitForReady(_ context.Context, _ time.Duration) error { return nil }
func (f *fakeBackend) Close()                                                {}

// fakeEmbedder returns a fixed-dimension vector for any text.
type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}, TotalTokens: 1}, nil
}

var testFingerprint = domain.EmbeddingFingerprint{
	Provider:   "test",
	Model:      "fake-model",
	Dimensions: 3,
}
