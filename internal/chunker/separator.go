package chunker

import "errors"

// Separator is one level of the separator hierarchy: either a literal
// boundary marker or the terminal switch to raw character slicing.
type Separator struct {
	literal  string
	fallback bool
}

// Literal returns a separator that splits on the given string.
// An empty literal is rejected when the configuration is validated.
func Literal(s string) Separator {
	return Separator{literal: s}
}

// CharacterFallback returns the sentinel that switches to character slicing
func CharacterFallback() Separator {
	return Separator{fallback: true}
}

// IsFallback reports whether s is the character-slicing sentinel
func (s Separator) IsFallback() bool {
	return s.fallback
}

// Text returns the literal boundary marker ("" for the fallback sentinel)
func (s Separator) Text() string {
	return s.literal
}

// String renders the separator for logs and events
func (s Separator) String() string {
	if s.fallback {
		return "<chars>"
	}
	return s.literal
}

// DefaultSeparators returns the coarse-to-fine hierarchy used when none is configured:
// paragraphs, lines, sentences, clauses, words, then characters.
func DefaultSeparators() []Separator {
	return []Separator{
		Literal("\n\n"),
		Literal("\n"),
		Literal(". "),
		Literal(", "),
		Literal(" "),
		CharacterFallback(),
	}
}

// ParseSeparators converts the configuration form of a hierarchy, where an
// empty string means "fall through to character slicing".
func ParseSeparators(raw []string) []Separator {
	seps := make([]Separator, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			seps = append(seps, CharacterFallback())
			continue
		}
		seps = append(seps, Literal(s))
	}
	return seps
}

// validateSeparators checks that the hierarchy is non-empty and every literal
// is non-empty. A fallback sentinel before the end is skipped while splitting.
func validateSeparators(seps []Separator) error {
	if len(seps) == 0 {
		return ErrNoSeparators
	}

	for _, sep := range seps {
		if !sep.fallback && sep.literal == "" {
			return ErrEmptySeparator
		}
	}

	return nil
}

// Separator hierarchy errors
var (
	ErrNoSeparators   = errors.New("separator hierarchy must not be empty")
	ErrEmptySeparator = errors.New("literal separator must not be empty")
)
