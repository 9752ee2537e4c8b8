package models

// Chunk is a bounded span of document text prepared for embedding and
// similarity retrieval. Chunks are immutable once written and carry the
// owning username so a search can never cross tenants.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Owner      string    `json:"owner"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Vector     []float64 `json:"-"`
}

// SearchResult is a matching chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}
