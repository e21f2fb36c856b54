package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/pdfrag-mcp/internal/chunker"
	"github.com/dshills/pdfrag-mcp/internal/compare"
	"github.com/dshills/pdfrag-mcp/internal/indexer"
	"github.com/dshills/pdfrag-mcp/internal/parser"
	"github.com/dshills/pdfrag-mcp/internal/rag"
	"github.com/dshills/pdfrag-mcp/internal/searcher"
	"github.com/dshills/pdfrag-mcp/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound = -32001 // Document or version is not stored
	ErrorCodeIngestInProgress = -32002 // Another ingestion of the same document is running
	ErrorCodeNoText           = -32003 // PDF has no extractable text
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
)

// maxListedErrors caps the per-file errors returned by ingest_directory
const maxListedErrors = 5

// maxDiffLines caps the added and removed lines returned by compare_versions
const maxDiffLines = 50

// handleIngestPDF handles the ingest_pdf tool invocation
func (s *Server) handleIngestPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path := getStringDefault(args, "path", "")
	url := getStringDefault(args, "url", "")
	if (path == "") == (url == "") {
		return nil, newMCPError(ErrorCodeInvalidParams, "exactly one of path or url is required", map[string]interface{}{
			"param":  "path",
			"reason": "provide a file path or a URL",
		})
	}

	metadata, err := getStringMap(args, "metadata")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid metadata", map[string]interface{}{
			"param":  "metadata",
			"reason": err.Error(),
		})
	}

	req := indexer.Request{
		DocumentID: strings.TrimSpace(getStringDefault(args, "document_id", "")),
		Version:    strings.TrimSpace(getStringDefault(args, "version", "")),
		Metadata:   metadata,
	}

	var result *indexer.Result
	if path != "" {
		if err := validateFilePath(path); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
				"param":  "path",
				"reason": err.Error(),
			})
		}
		result, err = s.indexer.IngestFile(ctx, path, req)
	} else {
		result, err = s.indexer.IngestURL(ctx, url, req)
	}
	if err != nil {
		return nil, ingestError(err)
	}

	s.searcher.InvalidateCache()

	response := ingestResultMap(result)
	response["ingested"] = true
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestDirectory handles the ingest_directory tool invocation
func (s *Server) handleIngestDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validateDirPath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	stats, err := s.indexer.IngestDirectory(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if len(stats.Succeeded) > 0 {
		s.searcher.InvalidateCache()
	}

	documents := make([]map[string]interface{}, 0, len(stats.Succeeded))
	chunks := 0
	for _, r := range stats.Succeeded {
		documents = append(documents, ingestResultMap(r))
		chunks += r.ChunksCount
	}

	response := map[string]interface{}{
		"files_ingested": len(stats.Succeeded),
		"files_failed":   len(stats.Failed),
		"chunks_created": chunks,
		"documents":      documents,
		"duration_ms":    stats.Duration.Milliseconds(),
	}

	if len(stats.Failed) > 0 {
		errs := make([]string, 0, len(stats.Failed))
		for _, f := range stats.Failed {
			errs = append(errs, fmt.Sprintf("%s: %s", f.Path, f.Error))
		}
		if len(errs) > maxListedErrors {
			response["errors"] = errs[:maxListedErrors]
			response["error_count"] = len(errs)
		} else {
			response["errors"] = errs
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQueryDocuments handles the query_documents tool invocation
func (s *Server) handleQueryDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	limit, err := parseLimit(args, s.settings.Search.Limit)
	if err != nil {
		return nil, err
	}

	mode, err := parseSearchMode(args)
	if err != nil {
		return nil, err
	}

	documentID := getStringDefault(args, "document_id", "")
	version := getStringDefault(args, "version", "")
	if version != "" && documentID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "version requires document_id", map[string]interface{}{
			"param": "version",
		})
	}

	answer, err := s.rag.Answer(ctx, query, rag.Options{
		Limit:      limit,
		DocumentID: documentID,
		Version:    version,
		Mode:       mode,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "query failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"query":    answer.Query,
		"response": answer.Response,
		"sources":  answer.Sources,
	}
	if answer.Error != "" {
		response["error"] = answer.Error
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	limit, err := parseLimit(args, s.settings.Search.Limit)
	if err != nil {
		return nil, err
	}

	mode, err := parseSearchMode(args)
	if err != nil {
		return nil, err
	}

	filters, err := parseFilters(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     mode,
		Filters:  filters,
		UseCache: true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		result := map[string]interface{}{
			"rank":            r.Rank,
			"relevance_score": r.RelevanceScore,
			"chunk_index":     r.ChunkIndex,
			"content":         r.Content,
		}
		if r.Document != nil {
			result["document_id"] = r.Document.DocumentID
			result["version"] = r.Document.Version
			result["filename"] = r.Document.Filename
			result["title"] = r.Document.Title
		}
		results = append(results, result)
	}

	response := map[string]interface{}{
		"query":          query,
		"results":        results,
		"total_results":  resp.TotalResults,
		"search_mode":    string(resp.SearchMode),
		"duration_ms":    resp.Duration.Milliseconds(),
		"cache_hit":      resp.CacheHit,
		"vector_results": resp.VectorResults,
		"text_results":   resp.TextResults,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListVersions handles the list_versions tool invocation
func (s *Server) handleListVersions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	documentID, ok := args["document_id"].(string)
	if !ok || strings.TrimSpace(documentID) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "document_id parameter is required", map[string]interface{}{
			"param":  "document_id",
			"reason": "missing or empty",
		})
	}

	versions, err := s.rag.Versions(ctx, documentID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list versions", map[string]interface{}{
			"error": err.Error(),
		})
	}

	list := make([]map[string]interface{}, 0, len(versions))
	for _, v := range versions {
		list = append(list, map[string]interface{}{
			"version":      v.Version,
			"filename":     v.Filename,
			"title":        v.Title,
			"page_count":   v.PageCount,
			"chunks_count": v.ChunksCount,
			"ingested_at":  v.IngestedAt.Format(time.RFC3339),
		})
	}

	response := map[string]interface{}{
		"document_id": strings.TrimSpace(documentID),
		"versions":    list,
		"count":       len(list),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCompareVersions handles the compare_versions tool invocation
func (s *Server) handleCompareVersions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, 3)
	for _, key := range []string{"document_id", "version1", "version2"} {
		v, ok := args[key].(string)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
				"param":  key,
				"reason": "missing or empty",
			})
		}
		params[key] = strings.TrimSpace(v)
	}

	run := s.compare.CompareVersions
	if getBoolDefault(args, "summarize", false) {
		run = s.compare.SummarizeChanges
	}

	cmp, err := run(ctx, params["document_id"], params["version1"], params["version2"])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeDocumentNotFound, "document version not found", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "comparison failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := comparisonMap(cmp, getBoolDefault(args, "include_diff", false))
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSplitText handles the split_text tool invocation
func (s *Server) handleSplitText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	text, ok := args["text"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing",
		})
	}

	cfg := s.chunking
	cfg.ChunkSize = getIntDefault(args, "chunk_size", cfg.ChunkSize)
	cfg.ChunkOverlap = getIntDefault(args, "chunk_overlap", cfg.ChunkOverlap)

	method := s.method
	if raw := getStringDefault(args, "chunk_method", ""); raw != "" {
		method, err = chunker.ParseMethod(raw)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunk_method", map[string]interface{}{
				"param":   "chunk_method",
				"value":   raw,
				"allowed": []string{string(chunker.MethodIncremental), string(chunker.MethodRecursive)},
			})
		}
	}

	splitter, err := chunker.New(method, cfg)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking parameters", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	length := cfg.Length
	if length == nil {
		length = chunker.RuneLength
	}

	chunks := splitter.Split(text)
	lengths := make([]int, len(chunks))
	for i, c := range chunks {
		lengths[i] = length(c)
	}
	if chunks == nil {
		chunks = []string{}
	}

	response := map[string]interface{}{
		"chunks":        chunks,
		"count":         len(chunks),
		"lengths":       lengths,
		"chunk_size":    cfg.ChunkSize,
		"chunk_overlap": cfg.ChunkOverlap,
		"chunk_method":  string(method),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	lastIngested := ""
	if !status.LastIngestedAt.IsZero() {
		lastIngested = status.LastIngestedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"documents_count":  status.DocumentsCount,
			"versions_count":   status.VersionsCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
			"last_ingested_at": lastIngested,
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
		"configuration": map[string]interface{}{
			"chunk_size":         s.chunking.ChunkSize,
			"chunk_overlap":      s.chunking.ChunkOverlap,
			"chunk_method":       string(s.method),
			"length_measure":     lengthMeasure(s.settings.Chunking.LengthMeasure),
			"embedding_provider": s.embedder.Provider(),
			"embedding_model":    s.embedder.Model(),
			"llm_provider":       s.settings.LLM.Provider,
			"llm_model":          s.settings.LLM.Model,
		},
		"schema_version": status.SchemaVersion,
		"build_mode":     status.BuildMode,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func lengthMeasure(m string) string {
	if m == "" {
		return "chars"
	}
	return m
}

func ingestResultMap(r *indexer.Result) map[string]interface{} {
	return map[string]interface{}{
		"document_id":    r.DocumentID,
		"version":        r.Version,
		"filename":       r.Filename,
		"title":          r.Title,
		"page_count":     r.PageCount,
		"chunks_created": r.ChunksCount,
		"embedded":       r.EmbeddedCount,
		"page_errors":    r.PageErrors,
		"replaced":       r.Replaced,
		"duration_ms":    r.Duration.Milliseconds(),
	}
}

func comparisonMap(cmp *compare.Comparison, includeDiff bool) map[string]interface{} {
	additions, deletions := cmp.Diff.Additions, cmp.Diff.Deletions
	truncated := false
	if len(additions) > maxDiffLines {
		additions, truncated = additions[:maxDiffLines], true
	}
	if len(deletions) > maxDiffLines {
		deletions, truncated = deletions[:maxDiffLines], true
	}

	diff := map[string]interface{}{
		"similarity_ratio": cmp.Diff.SimilarityRatio,
		"additions_count":  cmp.Diff.AdditionsCount,
		"deletions_count":  cmp.Diff.DeletionsCount,
		"additions":        additions,
		"deletions":        deletions,
		"truncated":        truncated,
	}
	if includeDiff {
		diff["unified"] = cmp.Diff.Unified
	}

	response := map[string]interface{}{
		"document_id":      cmp.DocumentID,
		"version1":         cmp.Version1,
		"version2":         cmp.Version2,
		"comparison":       cmp.Analysis,
		"metadata_changes": cmp.MetadataChanges,
		"page_count_diff":  cmp.PageCountDiff,
		"diff":             diff,
	}
	if cmp.Summary != "" {
		response["summary"] = cmp.Summary
	}
	return response
}

// ingestError maps an ingestion failure onto an MCP error code
func ingestError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, indexer.ErrIngestInProgress):
		return newMCPError(ErrorCodeIngestInProgress, "ingestion already in progress", data)
	case errors.Is(err, indexer.ErrNoText):
		return newMCPError(ErrorCodeNoText, "no text content extracted from PDF", data)
	case errors.Is(err, parser.ErrNotPDF), errors.Is(err, parser.ErrEmptyInput), errors.Is(err, indexer.ErrDownloadTooLarge):
		return newMCPError(ErrorCodeInvalidParams, "invalid document", data)
	default:
		return newMCPError(ErrorCodeInternalError, "ingestion failed", data)
	}
}

func requireQuery(args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	return query, nil
}

func parseLimit(args map[string]interface{}, defaultLimit int) (int, error) {
	limit := getIntDefault(args, "limit", defaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return 0, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	return limit, nil
}

func parseSearchMode(args map[string]interface{}) (searcher.SearchMode, error) {
	raw := getStringDefault(args, "search_mode", "hybrid")
	mode, err := searcher.ParseMode(raw)
	if err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   raw,
			"allowed": searchModes,
		})
	}
	return mode, nil
}

func parseFilters(args map[string]interface{}) (*storage.SearchFilters, error) {
	raw, ok := args["filters"].(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	filters := &storage.SearchFilters{
		DocumentID: getStringDefault(raw, "document_id", ""),
		Version:    getStringDefault(raw, "version", ""),
	}
	if v, ok := raw["min_relevance"].(float64); ok {
		if v < 0 || v > 1 {
			return nil, newMCPError(ErrorCodeInvalidParams, "min_relevance must be between 0 and 1", map[string]interface{}{
				"param": "filters.min_relevance",
				"value": v,
			})
		}
		filters.MinRelevance = v
	}
	if filters.Version != "" && filters.DocumentID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "version filter requires document_id", map[string]interface{}{
			"param": "filters.version",
		})
	}

	return filters, nil
}

// arguments returns the call arguments; a call without arguments is empty
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateFilePath checks that path names a readable regular file
func validateFilePath(path string) error {
	info, err := statAbsolute(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return ErrIsDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// validateDirPath checks that path is a readable directory holding at least one PDF
func validateDirPath(path string) error {
	info, err := statAbsolute(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	hasPDFs := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".pdf") {
			hasPDFs = true
			return fs.SkipAll
		}
		return nil
	})

	if !hasPDFs {
		return ErrNoPDFFiles
	}
	return nil
}

func statAbsolute(path string) (os.FileInfo, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return nil, ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, ErrPathNotFound
	}
	if err != nil {
		return nil, ErrPathNotReadable
	}
	return info, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringMap extracts an object of string values
func getStringMap(args map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("must be an object")
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64, bool:
			out[k] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("value of %q must be a string", k)
		}
	}
	return out, nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrIsDirectory     = errors.New("path is a directory")
	ErrNoPDFFiles      = errors.New("directory does not contain PDF files")
)
