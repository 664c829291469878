// Package bolt implements store.Backend on an embedded bbolt database.
// Search is brute-force cosine distance over the collection, which is the
// right trade-off for the single-node corpus sizes this backend targets.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/store"
)

var (
	bucketKV          = []byte("kv")
	bucketCollections = []byte("collections")
	bucketRecords     = []byte("records")
	keyFingerprint    = []byte("__fingerprint")
)

// Compile-time check: Store implements store.Backend.
var _ store.Backend = (*Store)(nil)

// Store is a bbolt-backed vector store.
type Store struct {
	db *bbolt.DB
}

// storedRecord is the on-disk JSON layout of one record.
type storedRecord struct {
	Content  string            `json:"c"`
	Metadata map[string]string `json:"m,omitempty"`
	Vector   []float32         `json:"v"`
}

// NewStore opens (or creates) the database file at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketKV, bucketCollections} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketKV).Get([]byte(key))
		if data == nil {
			return store.ErrKeyNotFound
		}
		out = append(out, data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	})
}

// Fingerprint returns the embedding fingerprint the collection was created
// with, or domain.ErrCollectionNotFound if it has never been persisted.
func (s *Store) Fingerprint(_ context.Context, collection string) (domain.EmbeddingFingerprint, error) {
	var fp domain.EmbeddingFingerprint
	err := s.db.View(func(tx *bbolt.Tx) error {
		col := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if col == nil {
			return domain.ErrCollectionNotFound
		}
		data := col.Get(keyFingerprint)
		if data == nil {
			return domain.ErrCollectionNotFound
		}
		return json.Unmarshal(data, &fp)
	})
	if err != nil {
		return domain.EmbeddingFingerprint{}, err
	}
	return fp, nil
}

// SetFingerprint records the embedding fingerprint, creating the collection.
func (s *Store) SetFingerprint(_ context.Context, collection string, fp domain.EmbeddingFingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		col, err := tx.Bucket(bucketCollections).CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		if _, err := col.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		return col.Put(keyFingerprint, data)
	})
}

// Insert persists records into a collection in one transaction.
func (s *Store) Insert(_ context.Context, collection string, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		col, err := tx.Bucket(bucketCollections).CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		recs, err := col.CreateBucketIfNotExists(bucketRecords)
		if err != nil {
			return err
		}
		for _, r := range records {
			data, err := json.Marshal(storedRecord{
				Content:  r.Content,
				Metadata: r.Metadata,
				Vector:   r.Vector,
			})
			if err != nil {
				return fmt.Errorf("marshal record %s: %w", r.ID, err)
			}
			if err := recs.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search scans every record in the collection and returns the k nearest by
// cosine distance, ascending. Filtered-out records never count against k.
func (s *Store) Search(_ context.Context, collection string, vector []float32, k int, filter map[string]string) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	var hits []domain.SearchResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		col := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if col == nil {
			return domain.ErrCollectionNotFound
		}
		recs := col.Bucket(bucketRecords)
		if recs == nil {
			return nil
		}
		return recs.ForEach(func(_, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // skip corrupted entries
			}
			if !store.MatchesFilter(rec.Metadata, filter) {
				return nil
			}
			hits = append(hits, domain.SearchResult{
				Content:  rec.Content,
				Metadata: rec.Metadata,
				Distance: cosineDistance(vector, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count reports the number of records in a collection.
func (s *Store) Count(_ context.Context, collection string) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		col := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if col == nil {
			return domain.ErrCollectionNotFound
		}
		if recs := col.Bucket(bucketRecords); recs != nil {
			n = recs.Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Drop removes a collection and all its records.
func (s *Store) Drop(_ context.Context, collection string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketCollections).DeleteBucket([]byte(collection))
		if err == bbolt.ErrBucketNotFound {
			return domain.ErrCollectionNotFound
		}
		return err
	})
}

// Ping verifies the database file is readable.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(_ *bbolt.Tx) error { return nil })
}

// WaitForReady is immediate for an embedded store.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close releases the database file.
func (s *Store) Close() {
	_ = s.db.Close()
}

// cosineDistance returns 1 - cos(a, b), ranging 0 (same direction) to 2
// (opposite). Mismatched or zero-norm vectors get the maximum distance 2
// rather than an error, so one bad record cannot poison a whole search but
// still ranks below every comparable one.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
