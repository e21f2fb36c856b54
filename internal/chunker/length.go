package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// LengthFunc measures text in the units chunk sizes are expressed in
type LengthFunc func(string) int

// RuneLength counts Unicode code points. It is the default length measure.
func RuneLength(s string) int {
	return utf8.RuneCountInString(s)
}

// TokenLength measures text in tokens of the given codec.
// Text the codec cannot encode is measured in code points.
func TokenLength(codec tokenizer.Codec) LengthFunc {
	return func(s string) int {
		ids, _, err := codec.Encode(s)
		if err != nil {
			return RuneLength(s)
		}
		return len(ids)
	}
}

// NewTokenLength returns a cl100k_base token counter, the encoding used by
// OpenAI embedding models.
func NewTokenLength() (LengthFunc, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load cl100k_base tokenizer: %w", err)
	}
	return TokenLength(codec), nil
}

// truncateRunes returns the first n code points of s
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
