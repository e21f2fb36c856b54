package compare

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// contextLines is the number of unchanged lines kept around each hunk
const contextLines = 3

// TextDiff summarizes line changes between two texts
type TextDiff struct {
	SimilarityRatio float64  `json:"similarity_ratio"`
	AdditionsCount  int      `json:"additions_count"`
	DeletionsCount  int      `json:"deletions_count"`
	Additions       []string `json:"additions"`
	Deletions       []string `json:"deletions"`
	Unified         string   `json:"unified,omitempty"`
}

// DiffTexts compares a and b line by line. The similarity ratio is measured
// on characters.
func DiffTexts(a, b string) TextDiff {
	linesA, linesB := splitLines(a), splitLines(b)

	d := TextDiff{
		Additions:       []string{},
		Deletions:       []string{},
		SimilarityRatio: Similarity(a, b),
	}

	m := difflib.NewMatcher(linesA, linesB)
	for _, group := range m.GetGroupedOpCodes(contextLines) {
		for _, op := range group {
			switch op.Tag {
			case 'r':
				d.Deletions = append(d.Deletions, linesA[op.I1:op.I2]...)
				d.Additions = append(d.Additions, linesB[op.J1:op.J2]...)
			case 'd':
				d.Deletions = append(d.Deletions, linesA[op.I1:op.I2]...)
			case 'i':
				d.Additions = append(d.Additions, linesB[op.J1:op.J2]...)
			}
		}
	}
	d.AdditionsCount = len(d.Additions)
	d.DeletionsCount = len(d.Deletions)

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(linesA),
		B:        withNewlines(linesB),
		FromFile: "a",
		ToFile:   "b",
		Context:  contextLines,
	})
	if err == nil {
		d.Unified = unified
	}

	return d
}

// Similarity returns 2*M/T over the characters of a and b, 1.0 when both are empty
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runeStrings(a), runeStrings(b)).Ratio()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
