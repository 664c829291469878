package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestKV_GetMissReturnsSentinel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "absent"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want v", got)
	}
}

func TestFingerprint_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Fingerprint(ctx, "docs"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}

	fp := domain.EmbeddingFingerprint{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 3}
	if err := s.SetFingerprint(ctx, "docs", fp); err != nil {
		t.Fatalf("SetFingerprint: %v", err)
	}

	got, err := s.Fingerprint(ctx, "docs")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if !got.Equal(fp) {
		t.Errorf("fingerprint = %v, want %v", got, fp)
	}
}

func TestSearch_OrdersByCosineDistance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []store.Record{
		{ID: "far", Content: "far", Vector: []float32{0, 1, 0}},
		{ID: "near", Content: "near", Vector: []float32{1, 0.1, 0}},
		{ID: "exact", Content: "exact", Vector: []float32{1, 0, 0}},
	}
	if err := s.Insert(ctx, "docs", records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	hits, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Content != "exact" || hits[1].Content != "near" {
		t.Errorf("hit order = %q, %q", hits[0].Content, hits[1].Content)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Errorf("distances not ascending: %f, %f", hits[0].Distance, hits[1].Distance)
	}
	if hits[0].Distance > 1e-6 {
		t.Errorf("exact match distance = %f, want ~0", hits[0].Distance)
	}
}

func TestSearch_BadVectorRanksLast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []store.Record{
		{ID: "dissimilar", Content: "dissimilar", Vector: []float32{-1, 0.1, 0}},
		{ID: "short", Content: "short", Vector: []float32{1, 0}},
		{ID: "zero", Content: "zero", Vector: []float32{0, 0, 0}},
	}
	if err := s.Insert(ctx, "docs", records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	hits, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	// A genuinely dissimilar vector (distance just under 2) is still
	// comparable; records with mismatched or zero-norm vectors get the
	// maximum distance 2 and must not outrank it.
	if hits[0].Content != "dissimilar" {
		t.Errorf("first hit = %q, want the comparable dissimilar vector", hits[0].Content)
	}
	for _, h := range hits[1:] {
		if h.Distance != 2 {
			t.Errorf("bad vector %q distance = %f, want 2", h.Content, h.Distance)
		}
	}
}

func TestSearch_MetadataFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []store.Record{
		{ID: "a", Content: "from a", Metadata: map[string]string{"source": "a.txt"}, Vector: []float32{1, 0}},
		{ID: "b", Content: "from b", Metadata: map[string]string{"source": "b.txt"}, Vector: []float32{1, 0.01}},
	}
	if err := s.Insert(ctx, "docs", records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	hits, err := s.Search(ctx, "docs", []float32{1, 0}, 5, map[string]string{"source": "b.txt"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "from b" {
		t.Fatalf("unexpected filtered hits: %+v", hits)
	}
}

func TestSearch_MissingCollection(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Search(context.Background(), "absent", []float32{1}, 3, nil)
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestCountAndDrop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Insert(ctx, "docs", []store.Record{
		{ID: "a", Content: "a", Vector: []float32{1}},
		{ID: "b", Content: "b", Vector: []float32{0.5}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := s.Count(ctx, "docs")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	if err := s.Drop(ctx, "docs"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, err := s.Fingerprint(ctx, "docs"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound after drop, got %v", err)
	}
}

func TestInsert_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")
	ctx := context.Background()

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	err = s.Insert(ctx, "docs", []store.Record{{ID: "a", Content: "kept", Vector: []float32{1, 0}}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	s.Close()

	s, err = NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	hits, err := s.Search(ctx, "docs", []float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "kept" {
		t.Fatalf("unexpected hits after reopen: %+v", hits)
	}
}
