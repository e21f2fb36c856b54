package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfrag-mcp/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env", ""}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSplitTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha beta gamma delta"), 0644))

	out, _, err := execute(t, "--size", "12", "--overlap", "0", "--method", "recursive", "--json", path)
	require.NoError(t, err)

	var chunks []chunkOutput
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha beta", chunks[0].Content)
	assert.Equal(t, 10, chunks[0].Length)
	assert.Equal(t, "gamma delta", chunks[1].Content)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestSplitPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	data := testutil.BuildPDF([]string{"First page text", "Second page text"}, testutil.PDFInfo{Title: "Doc"})
	require.NoError(t, os.WriteFile(path, data, 0644))

	out, _, err := execute(t, "--size", "1000", "--overlap", "0", path)
	require.NoError(t, err)
	assert.Contains(t, out, "--- chunk 0")
	assert.Contains(t, out, "First page text")
	assert.Contains(t, out, "Second page text")
}

func TestSplitErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0644))

	tests := []struct {
		name string
		args []string
	}{
		{"missing file argument", nil},
		{"overlap not below size", []string{"--size", "10", "--overlap", "10", path}},
		{"unknown method", []string{"--method", "semantic", path}},
		{"unreadable file", []string{filepath.Join(t.TempDir(), "missing.txt")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
