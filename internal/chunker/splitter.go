// Package chunker splits normalized documents into bounded, overlapping
// segments suitable for embedding.
package chunker

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/atlas-chat/atlas/internal/domain"
)

// Default chunking parameters, chosen to keep a chunk within a single
// embedding request while preserving paragraph-scale context.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Splitter cuts document content into chunks of at most Size runes where
// consecutive chunks from the same document share exactly Overlap runes of
// boundary content. Splitting is a pure function of the input: the same
// documents always produce the same chunks in the same order.
type Splitter struct {
	size    int
	overlap int
}

// New creates a Splitter. Non-positive size falls back to DefaultChunkSize;
// an overlap outside [0, size) falls back to DefaultChunkOverlap or size/10,
// whichever fits.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split chunks every document in order. A document no longer than the chunk
// size yields exactly one chunk equal to the document; an empty input yields
// an empty output. Every input rune appears in at least one chunk.
func (s *Splitter) Split(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.splitDocument(doc)...)
	}
	return chunks
}

func (s *Splitter) splitDocument(doc domain.Document) []domain.Chunk {
	content := []rune(doc.Content)
	if len(content) == 0 {
		return nil
	}

	stride := s.size - s.overlap

	var chunks []domain.Chunk
	for start, seq := 0, 0; ; start, seq = start+stride, seq+1 {
		end := start + s.size
		if end > len(content) {
			end = len(content)
		}

		chunks = append(chunks, domain.Chunk{
			ID:       uuid.NewString(),
			Content:  string(content[start:end]),
			Metadata: chunkMetadata(doc, seq),
			Source:   doc.Source,
			Seq:      seq,
		})

		if end == len(content) {
			break
		}
	}
	return chunks
}

// chunkMetadata copies the document metadata so chunks never alias the
// original map, and records the chunk position within its source.
func chunkMetadata(doc domain.Document, seq int) map[string]string {
	md := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		md[k] = v
	}
	md["source"] = doc.Source
	md["chunk"] = fmt.Sprintf("%d", seq)
	return md
}
