package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfrag-mcp/internal/testutil"
)

func TestNew(t *testing.T) {
	p := New()
	assert.Equal(t, DefaultMaxPages, p.maxPages)
	assert.Equal(t, DefaultPageBatchSize, p.pageBatchSize)

	p = New(WithMaxPages(0), WithPageBatchSize(-1))
	assert.Equal(t, 0, p.maxPages)
	assert.Equal(t, DefaultPageBatchSize, p.pageBatchSize)
}

func TestParse_TextAndMetadata(t *testing.T) {
	data := testutil.BuildPDF(
		[]string{"Test PDF document", "Second page text"},
		testutil.PDFInfo{Title: "Handbook", Author: "HR Team"},
	)

	p := New()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	result, err := p.Parse(context.Background(), data)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Test PDF document")
	assert.Contains(t, result.Text, "Second page text")
	assert.Contains(t, result.Text, "\n\n")
	assert.False(t, result.HasErrors())

	meta := result.Metadata
	assert.Equal(t, "Handbook", meta.Title)
	assert.Equal(t, "HR Team", meta.Author)
	assert.Equal(t, 2, meta.PageCount)
	assert.Equal(t, DocumentHash(data), meta.DocumentHash)
	assert.Len(t, meta.DocumentHash, 64)
	assert.Equal(t, fixed, meta.ProcessedDate)

	m := meta.ToMap()
	assert.Equal(t, "2", m["page_count"])
	assert.Equal(t, "Handbook", m["title"])
	assert.NotContains(t, m, "subject")
}

func TestExtractText_MaxPages(t *testing.T) {
	data := testutil.BuildPDF([]string{"alpha page", "beta page", "gamma page"}, testutil.PDFInfo{})

	text, err := New(WithMaxPages(2), WithPageBatchSize(1)).ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, text, "alpha")
	assert.Contains(t, text, "beta")
	assert.NotContains(t, text, "gamma")

	text, err = New(WithMaxPages(0)).ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, text, "gamma")
}

func TestExtractMetadata_PageCountIgnoresLimit(t *testing.T) {
	data := testutil.BuildPDF([]string{"one", "two", "three"}, testutil.PDFInfo{})

	meta, err := New(WithMaxPages(1)).ExtractMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.PageCount)
	assert.Empty(t, meta.Title)
}

func TestParse_Cancelled(t *testing.T) {
	data := testutil.BuildPDF([]string{"one"}, testutil.PDFInfo{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Parse(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrEmptyInput},
		{name: "not a pdf", data: []byte("hello world"), want: ErrNotPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse(context.Background(), tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_Truncated(t *testing.T) {
	data := testutil.BuildPDF([]string{"one"}, testutil.PDFInfo{})

	_, err := New().Parse(context.Background(), data[:len(data)/2])
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, testutil.BuildPDF([]string{"file based"}, testutil.PDFInfo{}), 0o644))

	result, err := New().ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "file based")

	_, err = New().ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestDocumentHash(t *testing.T) {
	assert.Equal(t, DocumentHash([]byte("abc")), DocumentHash([]byte("abc")))
	assert.NotEqual(t, DocumentHash([]byte("abc")), DocumentHash([]byte("abd")))
}
