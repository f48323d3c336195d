package models

// Chunk is one bounded, overlapping slice of a parsed document.
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
	Offset     int
}

// RetrievedResult is one ranked hit from a similarity search. Results are
// ordered by descending similarity; no score is exposed, only order.
type RetrievedResult struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
