package types

// SearchResult represents a single search result with relevance information
type SearchResult struct {
	// Identification
	ChunkID int64
	Rank    int // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 // Combined score from vector + BM25 + RRF

	// Metadata
	Document   *DocumentRef
	ChunkIndex int
	Content    string
}

// DocumentRef identifies the document version a result came from
type DocumentRef struct {
	DocumentID string
	Version    string
	Filename   string
	Title      string
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.Document == nil {
		return ErrMissingDocumentInfo
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
