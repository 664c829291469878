// Package redis implements store.Backend on Redis 8+ via rueidis, using
// FT.SEARCH KNN over per-collection hash indexes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/store"
)

// Compile-time check: Store implements store.Backend.
var _ store.Backend = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements store.Backend via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

// Key layout under the configured prefix:
//
//	<prefix>fp:<collection>        fingerprint JSON
//	<prefix>col:<collection>:<id>  one record hash (content, meta, vector)
//	<prefix>idx:<collection>       FT index name
func (s *Store) fingerprintKey(collection string) string {
	return s.prefix + "fp:" + collection
}

func (s *Store) recordPrefix(collection string) string {
	return s.prefix + "col:" + collection + ":"
}

func (s *Store) indexName(collection string) string {
	return s.prefix + "idx:" + collection
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, store.ErrKeyNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(key).Value(string(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Fingerprint returns the embedding fingerprint a collection was created with.
func (s *Store) Fingerprint(ctx context.Context, collection string) (domain.EmbeddingFingerprint, error) {
	data, err := s.Get(ctx, s.fingerprintKey(collection))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return domain.EmbeddingFingerprint{}, domain.ErrCollectionNotFound
		}
		return domain.EmbeddingFingerprint{}, err
	}
	var fp domain.EmbeddingFingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return domain.EmbeddingFingerprint{}, fmt.Errorf("parse fingerprint: %w", err)
	}
	return fp, nil
}

// SetFingerprint records the fingerprint and ensures the FT index exists with
// matching dimensions.
func (s *Store) SetFingerprint(ctx context.Context, collection string, fp domain.EmbeddingFingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}
	if err := s.Set(ctx, s.fingerprintKey(collection), data); err != nil {
		return err
	}
	return s.createIndex(ctx, collection, fp.Dimensions)
}

func (s *Store) createIndex(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("vector dimensions must be positive")
	}

	args := []string{
		s.indexName(collection),
		"ON", "HASH",
		"PREFIX", "1", s.recordPrefix(collection),
		"SCHEMA",
		"vector", "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dimensions),
		"DISTANCE_METRIC", "COSINE",
	}

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Insert stores records as hashes in a single pipelined round-trip.
func (s *Store) Insert(ctx context.Context, collection string, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(records))
	for i, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		cmds[i] = s.client.B().Hset().
			Key(s.recordPrefix(collection)+r.ID).
			FieldValue().
			FieldValue("content", r.Content).
			FieldValue("meta", string(meta)).
			FieldValue("vector", string(store.EncodeVector(r.Vector))).
			Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return fmt.Errorf("insert record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// filterOverfetch inflates the KNN fetch when a metadata filter is set.
// Metadata lives in one JSON field rather than indexed TAG fields, so the
// filter is applied client-side; fetching only k would make matching records
// outside the global top-k unreachable.
const filterOverfetch = 10

// Search runs a KNN query via FT.SEARCH and returns up to k hits ordered by
// ascending cosine distance. A metadata filter is applied after an inflated
// KNN pass; matches ranked below k*filterOverfetch are still unreachable.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]domain.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	fetchK := k
	if len(filter) > 0 {
		fetchK = k * filterOverfetch
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", fetchK)
	args := []string{
		s.indexName(collection), queryStr,
		"RETURN", "3", "content", "meta", "__vector_score",
		"SORTBY", "__vector_score",
		"LIMIT", "0", strconv.Itoa(fetchK),
		"PARAMS", "2", "BLOB", string(store.EncodeVector(vector)),
		"DIALECT", "2",
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index") {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits, err := parseKNNResult(raw)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return hits, nil
	}
	filtered := hits[:0]
	for _, hit := range hits {
		if store.MatchesFilter(hit.Metadata, filter) {
			filtered = append(filtered, hit)
		}
	}
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	return filtered, nil
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...] with fields as flat name/value pairs.
func parseKNNResult(raw []rueidis.RedisMessage) ([]domain.SearchResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]domain.SearchResult, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		pairs := parseFieldPairs(fields)

		hit := domain.SearchResult{Content: pairs["content"]}
		if metaStr, ok := pairs["meta"]; ok && metaStr != "" {
			if err := json.Unmarshal([]byte(metaStr), &hit.Metadata); err != nil {
				hit.Metadata = nil
			}
		}
		if scoreStr, ok := pairs["__vector_score"]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				hit.Distance = d
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// Count returns the number of records via FT.SEARCH with LIMIT 0 0.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.indexName(collection), "*", "LIMIT", "0", "0").
		Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index") {
			return 0, domain.ErrCollectionNotFound
		}
		return 0, fmt.Errorf("count: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// Drop removes the index with its records and the fingerprint.
func (s *Store) Drop(ctx context.Context, collection string) error {
	cmd := s.client.B().Arbitrary("FT.DROPINDEX").
		Args(s.indexName(collection), "DD").
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index") {
			return domain.ErrCollectionNotFound
		}
		return fmt.Errorf("drop index: %w", err)
	}

	del := s.client.B().Del().Key(s.fingerprintKey(collection)).Build()
	if err := s.client.Do(ctx, del).Error(); err != nil {
		return fmt.Errorf("delete fingerprint: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the store responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// isRedisErr checks if err is a Redis server error containing substr
// (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
