package domain

// Document is a unit of normalized plain text extracted from one source,
// together with its metadata. Documents are immutable once produced by a
// loader; the chunker consumes them and emits bounded Chunks.
type Document struct {
	Content  string
	Metadata map[string]string
	Source   string
}

// Chunk is a bounded segment of a Document. Consecutive chunks from the same
// source share an overlap region so no boundary content is lost at a split
// point. Seq preserves insertion order among chunks of one source.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]string
	Source   string
	Seq      int
}

// NewDocument creates a Document with the source recorded in metadata.
func NewDocument(content, source string, metadata map[string]string) Document {
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata["source"] = source
	return Document{
		Content:  content,
		Metadata: metadata,
		Source:   source,
	}
}
