package domain

import "errors"

var (
	// ErrCollectionNotFound signals that a named collection has never been
	// created or persisted. Callers treat it as empty/default, not fatal.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrNoSource signals that a collection does not exist and no document
	// source was supplied to create it from. Fatal to the call.
	ErrNoSource = errors.New("no document source provided")
	// ErrNoData signals that the supplied source yielded nothing ingestible.
	// Fatal to the call.
	ErrNoData = errors.New("source yielded no documents")
	// ErrEmbedderMismatch signals that a persisted collection was built with a
	// different embedding function than the one configured now. Mixing
	// embedding functions within a collection is rejected outright.
	ErrEmbedderMismatch = errors.New("embedding function mismatch")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrGenerationFailed signals that every provider in the LLM fallback
	// chain failed for a request.
	ErrGenerationFailed = errors.New("text generation failed")
)
