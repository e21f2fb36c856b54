package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfrag-mcp/internal/chunker"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	assert.Equal(t, 1000, s.Chunking.ChunkSize)
	assert.Equal(t, 200, s.Chunking.ChunkOverlap)
	assert.Equal(t, "incremental", s.Chunking.Method)
	assert.Equal(t, 30*time.Second, s.Chunking.MaxChunkTime)
	assert.Equal(t, 10000, s.Chunking.BatchSize)
	assert.Equal(t, 100, s.PDF.MaxPages)
	assert.Equal(t, 10, s.PDF.PageBatchSize)
	assert.Equal(t, 50, s.Ingest.MaxChunksPerBatch)
	assert.Equal(t, 10, s.Search.Limit)
	assert.Equal(t, "gpt-4", s.LLM.Model)

	cfg, method, err := s.ChunkerConfig()
	require.NoError(t, err)
	assert.Equal(t, chunker.MethodIncremental, method)
	assert.Equal(t, chunker.DefaultSeparators(), cfg.Separators)
}

func TestFromLookup_Overrides(t *testing.T) {
	s, err := FromLookup(mapLookup(map[string]string{
		EnvChunkSize:      "500",
		EnvChunkOverlap:   "50",
		EnvChunkMethod:    "recursive",
		EnvMaxChunkTime:   "2.5",
		EnvSeparators:     `["\n", " "]`,
		EnvLLMProvider:    "anthropic",
		EnvAnthropicKey:   "sk-ant",
		EnvOpenAIAPIKey:   "sk-openai",
		EnvLLMTemperature: "0.3",
		EnvLogJSON:        "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, 500, s.Chunking.ChunkSize)
	assert.Equal(t, 50, s.Chunking.ChunkOverlap)
	assert.Equal(t, 2500*time.Millisecond, s.Chunking.MaxChunkTime)
	assert.Equal(t, []string{"\n", " "}, s.Chunking.Separators)
	assert.Equal(t, "sk-ant", s.LLM.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", s.LLM.Model)
	assert.InDelta(t, 0.3, s.LLM.Temperature, 1e-9)
	assert.True(t, s.Log.JSON)

	cfg, method, err := s.ChunkerConfig()
	require.NoError(t, err)
	assert.Equal(t, chunker.MethodRecursive, method)
	assert.Equal(t, []chunker.Separator{chunker.Literal("\n"), chunker.Literal(" ")}, cfg.Separators)
}

func TestFromLookup_FallbackInTheMiddle(t *testing.T) {
	s, err := FromLookup(mapLookup(map[string]string{EnvSeparators: `["\n\n", "", " "]`}))
	require.NoError(t, err)

	cfg, _, err := s.ChunkerConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Separators, 3)
	assert.True(t, cfg.Separators[1].IsFallback())
}

func TestFromLookup_GoDuration(t *testing.T) {
	s, err := FromLookup(mapLookup(map[string]string{EnvMaxChunkTime: "45s"}))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, s.Chunking.MaxChunkTime)
}

func TestFromLookup_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{name: "bad int", env: map[string]string{EnvChunkSize: "big"}, want: ErrInvalidValue},
		{name: "bad separators", env: map[string]string{EnvSeparators: "not json"}, want: ErrInvalidValue},
		{name: "overlap too large", env: map[string]string{EnvChunkOverlap: "1000"}, want: chunker.ErrOverlapTooLarge},
		{name: "empty hierarchy", env: map[string]string{EnvSeparators: `[]`}, want: chunker.ErrNoSeparators},
		{name: "unknown method", env: map[string]string{EnvChunkMethod: "semantic"}, want: chunker.ErrUnknownMethod},
		{name: "unknown provider", env: map[string]string{EnvLLMProvider: "gemini"}, want: ErrInvalidProvider},
		{name: "bad length measure", env: map[string]string{EnvLengthMeasure: "bytes"}, want: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(mapLookup(tt.env))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PDFRAG_CHUNK_SIZE=321\nPDFRAG_SEARCH_LIMIT=7\n"), 0o600))

	t.Setenv(EnvSearchLimit, "3")

	s, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, 321, s.Chunking.ChunkSize)
	// Process environment wins over the file
	assert.Equal(t, 3, s.Search.Limit)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.NotNil(t, s)
}
