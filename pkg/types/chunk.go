package types

import (
	"crypto/sha256"
	"errors"
	"unicode/utf8"
)

// Chunk represents a size-bounded section of document text ready for embedding and search
type Chunk struct {
	// Identification
	ID         int64
	DocumentID int64 // Row ID of the document version this chunk belongs to

	// Position within the document version
	Index int // 0-based chunk index
	Total int // Number of chunks the document version was split into

	// Content
	Content     string
	ContentHash [32]byte // SHA-256 hash for deduplication
	TokenCount  int

	// Metadata attached during ingestion (document_id, version, filename, ...)
	Metadata map[string]string
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.Index < 0 {
		return errors.New("chunk index must not be negative")
	}

	if c.Total > 0 && c.Index >= c.Total {
		return errors.New("chunk index must be less than total chunks")
	}

	return nil
}

// ComputeTokenCount counts tokens with the given function.
// A nil counter falls back to the chars/4 heuristic.
func (c *Chunk) ComputeTokenCount(count func(string) int) int {
	if count == nil {
		c.TokenCount = utf8.RuneCountInString(c.Content) / 4
		return c.TokenCount
	}
	c.TokenCount = count(c.Content)
	return c.TokenCount
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	// Verify content hash is computed
	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return errors.New("content hash must be computed")
	}

	return nil
}
