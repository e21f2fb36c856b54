// Package compare diffs two stored versions of a document.
//
// Each version is rebuilt by joining its chunks in index order. DiffTexts
// reports added and removed lines from a unified diff with three context
// lines plus a character similarity ratio. The Service adds metadata
// changes, the page count delta and a model-written analysis.
package compare
