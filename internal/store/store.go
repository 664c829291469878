// Package store defines the persistence contracts for vector collections and
// the small key-value surface shared by the caching layers. Two backends
// implement them: an embedded bbolt store for single-node deployments and a
// Redis store using FT.SEARCH for larger ones.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/atlas-chat/atlas/internal/domain"
)

// ErrKeyNotFound signals a KV miss. Callers treat it as "absent", not fatal.
var ErrKeyNotFound = errors.New("key not found")

// Record is one embedded chunk as persisted in a collection.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]string
	Vector   []float32
}

// KV is the consumer interface for byte-valued key-value access (ISP).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Backend persists named vector collections and answers KNN queries over
// them. All methods are safe for concurrent use.
type Backend interface {
	KV

	// Fingerprint returns the embedding fingerprint a collection was created
	// with, or domain.ErrCollectionNotFound if the collection has never been
	// persisted.
	Fingerprint(ctx context.Context, collection string) (domain.EmbeddingFingerprint, error)
	// SetFingerprint records the embedding fingerprint for a collection,
	// creating the collection if needed.
	SetFingerprint(ctx context.Context, collection string, fp domain.EmbeddingFingerprint) error

	Insert(ctx context.Context, collection string, records []Record) error
	// Search returns up to k records ordered by ascending cosine distance
	// from the query vector. A non-empty filter restricts results to records
	// whose metadata contains every given key/value pair exactly.
	Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]domain.SearchResult, error)
	Count(ctx context.Context, collection string) (int, error)
	Drop(ctx context.Context, collection string) error

	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// EncodeVector packs a float32 vector as little-endian bytes, the layout both
// backends and the embedding cache share.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks bytes produced by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// MatchesFilter reports whether metadata satisfies every key/value pair in
// filter. An empty filter matches everything.
func MatchesFilter(metadata, filter map[string]string) bool {
	for k, want := range filter {
		if got, ok := metadata[k]; !ok || got != want {
			return false
		}
	}
	return true
}
