package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfrag-mcp/internal/config"
	"github.com/dshills/pdfrag-mcp/internal/embedder"
	"github.com/dshills/pdfrag-mcp/internal/llm"
	"github.com/dshills/pdfrag-mcp/internal/storage"
	"github.com/dshills/pdfrag-mcp/internal/testutil"
)

func testSettings() *config.Settings {
	s := config.Default()
	s.DBPath = ":memory:"
	s.Chunking.ChunkSize = 60
	s.Chunking.ChunkOverlap = 0
	s.Chunking.Method = "recursive"
	s.LLM.Provider = llm.ProviderStatic
	s.Ingest.Workers = 2
	return s
}

func setupServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	emb, err := embedder.NewLocalProvider(embedder.NewCache(100))
	require.NoError(t, err)

	s, err := newServer(testSettings(), store, emb, &llm.Static{Response: "Sixty days."}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// decode parses the JSON text of a tool result
func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func writePDF(t *testing.T, dir, name string, pages []string, title string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, testutil.BuildPDF(pages, testutil.PDFInfo{Title: title}), 0o644))
	return path
}

var contractV1 = []string{
	"The termination notice period is thirty days",
	"Payment is due within fifteen days of invoice",
}

var contractV2 = []string{
	"The termination notice period is sixty days",
	"Payment is due within fifteen days of invoice",
	"This agreement is governed by Delaware law",
}

func ingest(t *testing.T, s *Server, path, documentID, version string) map[string]interface{} {
	t.Helper()
	result, err := s.handleIngestPDF(context.Background(), callRequest("ingest_pdf", map[string]interface{}{
		"path":        path,
		"document_id": documentID,
		"version":     version,
		"metadata":    map[string]interface{}{"department": "legal"},
	}))
	require.NoError(t, err)
	return decode(t, result)
}

func TestNewServer(t *testing.T) {
	t.Setenv(embedder.EnvProvider, embedder.ProviderLocal)

	settings := testSettings()
	settings.DBPath = filepath.Join(t.TempDir(), "nested", "pdfrag.db")

	s, err := NewServer(settings, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.indexer)
	assert.NotNil(t, s.searcher)
	assert.NotNil(t, s.rag)
	assert.NotNil(t, s.compare)
	assert.FileExists(t, settings.DBPath)
}

func TestNewServer_MissingLLMKey(t *testing.T) {
	t.Setenv(embedder.EnvProvider, embedder.ProviderLocal)

	settings := testSettings()
	settings.LLM.Provider = llm.ProviderOpenAI
	settings.LLM.APIKey = ""

	s, err := NewServer(settings, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.compare.CompareVersions(context.Background(), "doc", "v1", "v2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = unavailableGenerator{err: llm.ErrMissingAPIKey}.Generate(context.Background(), "question")
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestIngestPDF(t *testing.T) {
	s := setupServer(t)
	path := writePDF(t, t.TempDir(), "contract.pdf", contractV1, "Service Contract")

	out := ingest(t, s, path, "contract", "v1")
	assert.Equal(t, true, out["ingested"])
	assert.Equal(t, "contract", out["document_id"])
	assert.Equal(t, "v1", out["version"])
	assert.Equal(t, "contract.pdf", out["filename"])
	assert.EqualValues(t, 2, out["page_count"])
	assert.Greater(t, out["chunks_created"].(float64), 0.0)
	assert.Equal(t, false, out["replaced"])

	out = ingest(t, s, path, "contract", "v1")
	assert.Equal(t, true, out["replaced"])
}

func TestIngestPDF_InvalidParams(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"neither path nor url", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"both path and url", map[string]interface{}{"path": "/a.pdf", "url": "http://x/a.pdf"}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "a.pdf"}, ErrorCodeInvalidParams},
		{"missing file", map[string]interface{}{"path": filepath.Join(dir, "missing.pdf")}, ErrorCodeInvalidParams},
		{"directory", map[string]interface{}{"path": dir}, ErrorCodeInvalidParams},
		{"bad metadata", map[string]interface{}{"path": "/a.pdf", "metadata": "x"}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIngestPDF(ctx, callRequest("ingest_pdf", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestIngestPDF_DocumentErrors(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	notPDF := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("plain text"), 0o644))
	_, err := s.handleIngestPDF(ctx, callRequest("ingest_pdf", map[string]interface{}{"path": notPDF}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	blank := writePDF(t, dir, "blank.pdf", []string{""}, "")
	_, err = s.handleIngestPDF(ctx, callRequest("ingest_pdf", map[string]interface{}{"path": blank}))
	requireMCPError(t, err, ErrorCodeNoText)
}

func TestIngestDirectory(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	writePDF(t, dir, "a.pdf", contractV1, "A")
	writePDF(t, dir, "b.PDF", contractV2, "B")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("nope"), 0o644))

	result, err := s.handleIngestDirectory(ctx, callRequest("ingest_directory", map[string]interface{}{"path": dir}))
	require.NoError(t, err)
	out := decode(t, result)

	assert.EqualValues(t, 2, out["files_ingested"])
	assert.EqualValues(t, 1, out["files_failed"])
	assert.Len(t, out["documents"], 2)
	assert.Len(t, out["errors"], 1)

	empty := t.TempDir()
	_, err = s.handleIngestDirectory(ctx, callRequest("ingest_directory", map[string]interface{}{"path": empty}))
	mcpErr := requireMCPError(t, err, ErrorCodeInvalidParams)
	assert.Equal(t, ErrNoPDFFiles.Error(), mcpErr.Data.(map[string]interface{})["reason"])

	_, err = s.handleIngestDirectory(ctx, callRequest("ingest_directory", map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSearchDocuments(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()
	ingest(t, s, writePDF(t, dir, "v1.pdf", contractV1, "Service Contract"), "contract", "v1")
	ingest(t, s, writePDF(t, dir, "v2.pdf", contractV2, "Service Contract"), "contract", "v2")

	result, err := s.handleSearchDocuments(ctx, callRequest("search_documents", map[string]interface{}{
		"query":       "Delaware law",
		"search_mode": "keyword",
		"limit":       float64(5),
	}))
	require.NoError(t, err)
	out := decode(t, result)

	assert.Equal(t, "keyword", out["search_mode"])
	results := out["results"].([]interface{})
	require.NotEmpty(t, results)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "contract", first["document_id"])
	assert.Equal(t, "v2", first["version"])
	assert.Contains(t, first["content"], "Delaware")

	result, err = s.handleSearchDocuments(ctx, callRequest("search_documents", map[string]interface{}{
		"query":   "termination notice",
		"filters": map[string]interface{}{"document_id": "contract", "version": "v1"},
	}))
	require.NoError(t, err)
	for _, r := range decode(t, result)["results"].([]interface{}) {
		assert.Equal(t, "v1", r.(map[string]interface{})["version"])
	}
}

func TestSearchDocuments_InvalidParams(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"empty query", map[string]interface{}{"query": "  "}, ErrorCodeEmptyQuery},
		{"limit too large", map[string]interface{}{"query": "x", "limit": float64(101)}, ErrorCodeInvalidParams},
		{"limit zero", map[string]interface{}{"query": "x", "limit": float64(0)}, ErrorCodeInvalidParams},
		{"bad mode", map[string]interface{}{"query": "x", "search_mode": "fuzzy"}, ErrorCodeInvalidParams},
		{"version without document", map[string]interface{}{"query": "x", "filters": map[string]interface{}{"version": "v1"}}, ErrorCodeInvalidParams},
		{"relevance out of range", map[string]interface{}{"query": "x", "filters": map[string]interface{}{"min_relevance": 1.5}}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleSearchDocuments(ctx, callRequest("search_documents", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestSearchDocuments_CacheInvalidatedByIngest(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()
	ingest(t, s, writePDF(t, dir, "v1.pdf", contractV1, "Contract"), "contract", "v1")

	search := func() map[string]interface{} {
		result, err := s.handleSearchDocuments(ctx, callRequest("search_documents", map[string]interface{}{
			"query": "Delaware", "search_mode": "keyword",
		}))
		require.NoError(t, err)
		return decode(t, result)
	}

	assert.Empty(t, search()["results"])

	ingest(t, s, writePDF(t, dir, "v2.pdf", contractV2, "Contract"), "contract", "v2")
	out := search()
	assert.NotEmpty(t, out["results"])
	assert.Equal(t, false, out["cache_hit"])
	assert.Equal(t, true, search()["cache_hit"])
}

func TestQueryDocuments(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	ingest(t, s, writePDF(t, t.TempDir(), "v2.pdf", contractV2, "Service Contract"), "contract", "v2")

	result, err := s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{
		"query":       "What is the termination notice period?",
		"document_id": "contract",
	}))
	require.NoError(t, err)
	out := decode(t, result)

	assert.Equal(t, "Sixty days.", out["response"])
	sources := out["sources"].([]interface{})
	require.NotEmpty(t, sources)
	src := sources[0].(map[string]interface{})
	assert.Equal(t, "contract", src["document_id"])
	assert.Equal(t, "v2", src["version"])
	assert.Equal(t, "Service Contract", src["title"])
	assert.Equal(t, "v2.pdf", src["filename"])

	result, err = s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{
		"query":       "What is the termination notice period?",
		"document_id": "unknown",
	}))
	require.NoError(t, err)
	assert.Equal(t, "I don't have enough information to answer this question.", decode(t, result)["response"])

	_, err = s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{"query": "x", "version": "v1"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleQueryDocuments(ctx, callRequest("query_documents", map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)
}

func TestListVersions(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()
	ingest(t, s, writePDF(t, dir, "v2.pdf", contractV2, "Contract"), "contract", "v2")
	ingest(t, s, writePDF(t, dir, "v1.pdf", contractV1, "Contract"), "contract", "v1")

	result, err := s.handleListVersions(ctx, callRequest("list_versions", map[string]interface{}{"document_id": "contract"}))
	require.NoError(t, err)
	out := decode(t, result)

	assert.EqualValues(t, 2, out["count"])
	versions := out["versions"].([]interface{})
	assert.Equal(t, "v1", versions[0].(map[string]interface{})["version"])
	assert.Equal(t, "v2", versions[1].(map[string]interface{})["version"])
	assert.EqualValues(t, 3, versions[1].(map[string]interface{})["page_count"])

	result, err = s.handleListVersions(ctx, callRequest("list_versions", map[string]interface{}{"document_id": "none"}))
	require.NoError(t, err)
	assert.EqualValues(t, 0, decode(t, result)["count"])

	_, err = s.handleListVersions(ctx, callRequest("list_versions", nil))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestCompareVersions(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()
	ingest(t, s, writePDF(t, dir, "v1.pdf", contractV1, "Contract"), "contract", "v1")
	ingest(t, s, writePDF(t, dir, "v2.pdf", contractV2, "Amended Contract"), "contract", "v2")

	result, err := s.handleCompareVersions(ctx, callRequest("compare_versions", map[string]interface{}{
		"document_id":  "contract",
		"version1":     "v1",
		"version2":     "v2",
		"summarize":    true,
		"include_diff": true,
	}))
	require.NoError(t, err)
	out := decode(t, result)

	assert.Equal(t, "Sixty days.", out["comparison"])
	assert.Equal(t, "Sixty days.", out["summary"])
	assert.EqualValues(t, 1, out["page_count_diff"])

	changes := out["metadata_changes"].(map[string]interface{})
	assert.Contains(t, changes, "title")
	assert.Contains(t, changes, "page_count")

	diff := out["diff"].(map[string]interface{})
	assert.Less(t, diff["similarity_ratio"].(float64), 1.0)
	assert.NotEmpty(t, diff["unified"])

	_, err = s.handleCompareVersions(ctx, callRequest("compare_versions", map[string]interface{}{
		"document_id": "contract", "version1": "v1", "version2": "v9",
	}))
	requireMCPError(t, err, ErrorCodeDocumentNotFound)

	_, err = s.handleCompareVersions(ctx, callRequest("compare_versions", map[string]interface{}{
		"document_id": "contract", "version1": "v1",
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSplitText(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	result, err := s.handleSplitText(ctx, callRequest("split_text", map[string]interface{}{
		"text":          "alpha beta gamma delta epsilon zeta eta theta",
		"chunk_size":    float64(12),
		"chunk_overlap": float64(0),
		"chunk_method":  "recursive",
	}))
	require.NoError(t, err)
	out := decode(t, result)

	assert.Equal(t, "recursive", out["chunk_method"])
	chunks := out["chunks"].([]interface{})
	assert.Equal(t, []interface{}{"alpha beta", "gamma delta", "epsilon zeta", "eta theta"}, chunks)
	for _, l := range out["lengths"].([]interface{}) {
		assert.LessOrEqual(t, l.(float64), 12.0)
	}

	result, err = s.handleSplitText(ctx, callRequest("split_text", map[string]interface{}{"text": ""}))
	require.NoError(t, err)
	assert.EqualValues(t, 0, decode(t, result)["count"])

	_, err = s.handleSplitText(ctx, callRequest("split_text", map[string]interface{}{
		"text": "x", "chunk_size": float64(10), "chunk_overlap": float64(10),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSplitText(ctx, callRequest("split_text", map[string]interface{}{"text": "x", "chunk_method": "semantic"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSplitText(ctx, callRequest("split_text", map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	ingest(t, s, writePDF(t, t.TempDir(), "v1.pdf", contractV1, "Contract"), "contract", "v1")

	result, err := s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	out := decode(t, result)

	stats := out["statistics"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["documents_count"])
	assert.EqualValues(t, 1, stats["versions_count"])
	assert.Equal(t, stats["chunks_count"], stats["embeddings_count"])
	assert.NotEmpty(t, stats["last_ingested_at"])

	health := out["health"].(map[string]interface{})
	assert.Equal(t, true, health["database_accessible"])

	cfg := out["configuration"].(map[string]interface{})
	assert.EqualValues(t, 60, cfg["chunk_size"])
	assert.Equal(t, "recursive", cfg["chunk_method"])
	assert.Equal(t, "chars", cfg["length_measure"])
	assert.Equal(t, embedder.ProviderLocal, cfg["embedding_provider"])
}

func TestArguments(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = "not an object"
	_, err := arguments(req)
	requireMCPError(t, err, ErrorCodeInvalidParams)

	args, err := arguments(mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestGetStringMap(t *testing.T) {
	m, err := getStringMap(map[string]interface{}{
		"metadata": map[string]interface{}{"a": "x", "n": float64(3), "ok": true},
	}, "metadata")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "x", "n": "3", "ok": "true"}, m)

	_, err = getStringMap(map[string]interface{}{"metadata": map[string]interface{}{"a": []interface{}{}}}, "metadata")
	assert.Error(t, err)

	m, err = getStringMap(map[string]interface{}{}, "metadata")
	require.NoError(t, err)
	assert.Nil(t, m)
}
