package chunker

import "strings"

// Assemble greedily packs pieces produced by splitting on sep into chunks of
// at most size length units. When a chunk is finalized, the next one is
// seeded with the last overlap pieces of it (overlap by piece count), so a
// retained piece longer than size yields an oversized chunk.
func Assemble(pieces []string, sep string, size, overlap int, length LengthFunc) []string {
	if length == nil {
		length = RuneLength
	}
	sepLen := length(sep)

	var chunks []string
	var acc []string
	cur := 0

	for _, piece := range pieces {
		// Adjacent separators leave empty pieces
		if piece == "" {
			continue
		}

		pieceLen := length(piece)
		added := pieceLen
		if len(acc) > 0 {
			added += sepLen
		}

		if len(acc) > 0 && cur+added > size {
			chunks = append(chunks, strings.Join(acc, sep))
			acc = overlapTail(acc, overlap)
			cur = length(strings.Join(acc, sep))
		}

		if len(acc) == 0 {
			cur = pieceLen
		} else {
			cur += sepLen + pieceLen
		}
		acc = append(acc, piece)
	}

	if len(acc) > 0 {
		chunks = append(chunks, strings.Join(acc, sep))
	}

	return chunks
}

// overlapTail copies the last n pieces of acc
func overlapTail(acc []string, n int) []string {
	if n <= 0 {
		return nil
	}
	start := len(acc) - n
	if start < 0 {
		start = 0
	}
	return append([]string(nil), acc[start:]...)
}

// SliceByLength cuts text into windows of size code points, each starting
// size-overlap code points after the previous one (overlap by length).
// The step is clamped to at least 1 so misconfigured overlap terminates.
func SliceByLength(text string, size, overlap int) []string {
	if text == "" || size <= 0 {
		return nil
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/step+1)
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}

	return chunks
}
