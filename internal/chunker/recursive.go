package chunker

import (
	"fmt"
	"strings"
)

// Recursive splits text on the coarsest separator present, then re-splits any
// oversized chunk with the next separator down, ending in character slicing.
type Recursive struct {
	cfg Config
}

// NewRecursive validates cfg and returns a recursive splitter
func NewRecursive(cfg Config) (*Recursive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	return &Recursive{cfg: cfg.withDefaults()}, nil
}

// Split returns the ordered chunks of text. Empty text yields no chunks and
// text that already fits is returned as the only chunk.
func (r *Recursive) Split(text string) []string {
	if text == "" {
		return nil
	}

	if r.cfg.Length(text) <= r.cfg.ChunkSize {
		return []string{text}
	}

	for i, sep := range r.cfg.Separators {
		if sep.IsFallback() {
			continue
		}
		if strings.Contains(text, sep.literal) {
			if chunks := r.splitBySeparator(text, i); len(chunks) > 0 {
				return chunks
			}
			// Text made only of separators leaves no pieces
			break
		}
	}

	return SliceByLength(text, r.cfg.ChunkSize, r.cfg.ChunkOverlap)
}

// splitBySeparator assembles text on separator idx and recurses into
// oversized chunks with the next literal separator.
func (r *Recursive) splitBySeparator(text string, idx int) []string {
	sep := r.cfg.Separators[idx].literal
	chunks := Assemble(strings.Split(text, sep), sep, r.cfg.ChunkSize, r.cfg.ChunkOverlap, r.cfg.Length)

	final := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if r.cfg.Length(chunk) <= r.cfg.ChunkSize {
			final = append(final, chunk)
			continue
		}

		if next, ok := r.nextLiteral(idx); ok {
			final = append(final, r.splitBySeparator(chunk, next)...)
		} else {
			final = append(final, SliceByLength(chunk, r.cfg.ChunkSize, r.cfg.ChunkOverlap)...)
		}
	}

	return final
}

// nextLiteral finds the first literal separator after idx
func (r *Recursive) nextLiteral(idx int) (int, bool) {
	for i := idx + 1; i < len(r.cfg.Separators); i++ {
		if !r.cfg.Separators[i].IsFallback() {
			return i, true
		}
	}
	return 0, false
}
