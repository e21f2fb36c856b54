package compare

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfrag-mcp/internal/storage"
	"github.com/dshills/pdfrag-mcp/pkg/types"
)

type fakeStore struct {
	docs   map[string]*types.Document // keyed by document_id@version
	chunks map[int64][]*types.Chunk
}

func (f *fakeStore) GetDocument(ctx context.Context, documentID, version string) (*types.Document, error) {
	doc, ok := f.docs[documentID+"@"+version]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func (f *fakeStore) ListChunksByDocument(ctx context.Context, rowID int64) ([]*types.Chunk, error) {
	return f.chunks[rowID], nil
}

type recordingGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (r *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if r.err != nil {
		return "", r.err
	}
	resp := r.responses[0]
	r.responses = r.responses[1:]
	return resp, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs: map[string]*types.Document{
			"contract@v1": {ID: 1, DocumentID: "contract", Version: "v1", Title: "Contract", PageCount: 2,
				Metadata: map[string]string{"creator": "Writer", "producer": "PDFKit"}},
			"contract@v2": {ID: 2, DocumentID: "contract", Version: "v2", Title: "Contract (amended)", PageCount: 3,
				Metadata: map[string]string{"creator": "Writer", "producer": "Skia"}},
		},
		chunks: map[int64][]*types.Chunk{
			1: {
				{Index: 0, Content: "Notice period: 30 days."},
				{Index: 1, Content: "Payment within 15 days."},
			},
			2: {
				{Index: 0, Content: "Notice period: 60 days."},
				{Index: 1, Content: "Payment within 15 days."},
				{Index: 2, Content: "Governing law: Delaware."},
			},
		},
	}
}

func TestDiffTexts(t *testing.T) {
	d := DiffTexts("a\nb\nc\n", "a\nB\nc\nd")

	assert.Equal(t, []string{"b"}, d.Deletions)
	assert.Equal(t, []string{"B", "d"}, d.Additions)
	assert.Equal(t, 1, d.DeletionsCount)
	assert.Equal(t, 2, d.AdditionsCount)
	assert.Contains(t, d.Unified, "--- a\n")
	assert.Contains(t, d.Unified, "+++ b\n")
	assert.Contains(t, d.Unified, "-b\n")
	assert.Contains(t, d.Unified, "+B\n")
}

func TestDiffTexts_Identical(t *testing.T) {
	d := DiffTexts("same\ntext", "same\ntext")
	assert.Empty(t, d.Additions)
	assert.Empty(t, d.Deletions)
	assert.Empty(t, d.Unified)
	assert.Equal(t, 1.0, d.SimilarityRatio)
}

func TestDiffTexts_Empty(t *testing.T) {
	d := DiffTexts("", "new line")
	assert.Equal(t, []string{"new line"}, d.Additions)
	assert.Empty(t, d.Deletions)
	assert.Equal(t, 0.0, d.SimilarityRatio)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"abcd", "abcd", 1.0},
		{"abcd", "abce", 0.75},
		{"abc", "xyz", 0.0},
		{"año", "ano", 2.0 * 2 / 6},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestMetadataChanges(t *testing.T) {
	before := map[string]string{"title": "A", "author": "X", "page_count": "2", "keywords": "old"}
	after := map[string]string{"title": "B", "author": "X", "page_count": "3", "producer": "P", "keywords": "new"}

	changes := MetadataChanges(before, after)
	assert.Equal(t, map[string]Change{
		"title":      {From: "A", To: "B"},
		"page_count": {From: "2", To: "3"},
		"producer":   {From: "", To: "P"},
	}, changes)
}

func TestCompareVersions(t *testing.T) {
	gen := &recordingGenerator{responses: []string{" Notice period doubled. "}}
	svc := NewService(newFakeStore(), gen, nil)

	cmp, err := svc.CompareVersions(context.Background(), "contract", "v1", "v2")
	require.NoError(t, err)

	assert.Equal(t, "Notice period doubled.", cmp.Analysis)
	assert.Equal(t, 1, cmp.PageCountDiff)
	assert.Equal(t, Change{From: "Contract", To: "Contract (amended)"}, cmp.MetadataChanges["title"])
	assert.Equal(t, Change{From: "PDFKit", To: "Skia"}, cmp.MetadataChanges["producer"])
	assert.Equal(t, Change{From: "2", To: "3"}, cmp.MetadataChanges["page_count"])
	assert.NotContains(t, cmp.MetadataChanges, "creator")

	assert.Contains(t, cmp.Diff.Deletions, "Notice period: 30 days.")
	assert.Contains(t, cmp.Diff.Additions, "Notice period: 60 days.")
	assert.Contains(t, cmp.Diff.Additions, "Governing law: Delaware.")
	assert.NotContains(t, cmp.Diff.Additions, "Payment within 15 days.")

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "Document ID: contract")
	assert.Contains(t, prompt, "Version 1 (v1):\nNotice period: 30 days.\n\nPayment within 15 days.")
	assert.Contains(t, prompt, "Version 2 (v2):\nNotice period: 60 days.")
}

func TestCompareVersions_TruncatesPrompt(t *testing.T) {
	store := newFakeStore()
	long := strings.Repeat("é", maxPromptChars+100)
	store.chunks[1] = []*types.Chunk{{Content: long}}

	gen := &recordingGenerator{responses: []string{"ok"}}
	svc := NewService(store, gen, nil)

	_, err := svc.CompareVersions(context.Background(), "contract", "v1", "v2")
	require.NoError(t, err)
	assert.Contains(t, gen.prompts[0], strings.Repeat("é", maxPromptChars)+"\n\nVersion 2")
	assert.NotContains(t, gen.prompts[0], strings.Repeat("é", maxPromptChars+1))
}

func TestCompareVersions_Errors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(newFakeStore(), &recordingGenerator{responses: []string{"x"}}, nil)
	_, err := svc.CompareVersions(ctx, "contract", "v1", "v9")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.CompareVersions(ctx, "contract", "", "v2")
	assert.ErrorIs(t, err, ErrMissingVersion)

	failing := NewService(newFakeStore(), &recordingGenerator{err: errors.New("quota")}, nil)
	_, err = failing.CompareVersions(ctx, "contract", "v1", "v2")
	assert.Error(t, err)
}

func TestSummarizeChanges(t *testing.T) {
	gen := &recordingGenerator{responses: []string{"Long analysis.", "- Notice doubled"}}
	svc := NewService(newFakeStore(), gen, nil)

	cmp, err := svc.SummarizeChanges(context.Background(), "contract", "v1", "v2")
	require.NoError(t, err)
	assert.Equal(t, "Long analysis.", cmp.Analysis)
	assert.Equal(t, "- Notice doubled", cmp.Summary)

	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "Long analysis.")
	assert.Contains(t, gen.prompts[1], "executive summary")
}
