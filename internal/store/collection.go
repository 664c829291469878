package store

import (
	"context"
	"fmt"

	"github.com/atlas-chat/atlas/internal/domain"
)

// Collection binds a named vector collection to the embedder it was created
// with. All reads and writes go through the embedder, so a Collection can
// never mix embedding functions.
type Collection struct {
	name     string
	backend  Backend
	embedder domain.Embedder
}

// NewCollection wraps an existing or freshly-created collection. Fingerprint
// verification happens in the registry before this is called.
func NewCollection(name string, backend Backend, embedder domain.Embedder) *Collection {
	return &Collection{name: name, backend: backend, embedder: embedder}
}

func (c *Collection) Name() string {
	return c.name
}

// Add embeds each chunk and persists the resulting records.
func (c *Collection) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]Record, 0, len(chunks))
	for _, chunk := range chunks {
		result, err := c.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
		}
		records = append(records, Record{
			ID:       chunk.ID,
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
			Vector:   result.Embedding,
		})
	}

	if err := c.backend.Insert(ctx, c.name, records); err != nil {
		return fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return nil
}

// Search embeds the query and returns up to k hits ordered by ascending
// cosine distance. A non-empty filter restricts hits to records whose
// metadata matches every pair exactly. An empty collection yields an empty
// result, not an error.
func (c *Collection) Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.SearchResult, error) {
	result, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := c.backend.Search(ctx, c.name, result.Embedding, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.name, err)
	}
	return hits, nil
}

// Count reports how many records the collection currently holds.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.backend.Count(ctx, c.name)
}
