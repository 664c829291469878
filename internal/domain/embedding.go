package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the
// decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// EmbeddingFingerprint identifies an embedding function version. Every vector
// in a collection must come from the same fingerprint; a collection persisted
// with one fingerprint refuses to load under another.
type EmbeddingFingerprint struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

func (f EmbeddingFingerprint) String() string {
	return fmt.Sprintf("%s/%s/%d", f.Provider, f.Model, f.Dimensions)
}

// Equal reports whether two fingerprints denote the same embedding function.
func (f EmbeddingFingerprint) Equal(other EmbeddingFingerprint) bool {
	return f.Provider == other.Provider &&
		f.Model == other.Model &&
		f.Dimensions == other.Dimensions
}
