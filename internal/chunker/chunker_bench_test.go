package chunker

import (
	"fmt"
	"strings"
	"testing"
)

// benchText builds n paragraphs of a few sentences each
func benchText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Paragraph %d opens the section. It carries a second sentence with more words.\n", i)
		sb.WriteString("A wrapped line follows and ends the paragraph.")
	}
	return sb.String()
}

func BenchmarkRecursiveSplit(b *testing.B) {
	r, err := NewRecursive(Config{ChunkSize: 1000, ChunkOverlap: 2})
	if err != nil {
		b.Fatal(err)
	}
	text := benchText(2000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if chunks := r.Split(text); len(chunks) == 0 {
			b.Fatal("no chunks")
		}
	}
}

func BenchmarkIncrementalSplit(b *testing.B) {
	s, err := NewIncremental(Config{ChunkSize: 1000, ChunkOverlap: 200})
	if err != nil {
		b.Fatal(err)
	}
	text := benchText(2000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if chunks := s.Split(text); len(chunks) == 0 {
			b.Fatal("no chunks")
		}
	}
}

func BenchmarkSliceByLength(b *testing.B) {
	text := strings.Repeat("abcdefghij", 100_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if chunks := SliceByLength(text, 1000, 200); len(chunks) == 0 {
			b.Fatal("no chunks")
		}
	}
}
