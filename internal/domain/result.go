package domain

// SearchResult is a single retrieval hit. Distance is the cosine distance
// between the query vector and the stored vector: 0 means identical direction,
// larger means less similar. Results are always ordered ascending by Distance.
// Callers applying threshold filters must treat the value as cosine distance,
// not as a generic score.
type SearchResult struct {
	Content  string
	Metadata map[string]string
	Distance float64
}
