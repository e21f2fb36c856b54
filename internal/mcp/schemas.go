package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var searchModes = []string{"hybrid", "vector", "keyword"}

func limitProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
		"minimum":     1,
		"maximum":     100,
	}
}

func searchModeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (BM25 only)",
		"enum":        searchModes,
		"default":     "hybrid",
	}
}

// ingestPDFTool returns the tool definition for ingest_pdf
func ingestPDFTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_pdf",
		Description: "Extract, chunk, embed and store a PDF from a local path or URL",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a PDF file (exactly one of path or url)",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "http(s) URL of a PDF to download (exactly one of path or url)",
				},
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier shared by all versions of the document (generated when omitted)",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Version label (ingestion timestamp when omitted). Re-ingesting a version replaces it.",
				},
				"metadata": map[string]interface{}{
					"type":                 "object",
					"description":          "Extra string metadata stored with every chunk",
					"additionalProperties": map[string]interface{}{"type": "string"},
				},
			},
		},
	}
}

// ingestDirectoryTool returns the tool definition for ingest_directory
func ingestDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_directory",
		Description: "Ingest every PDF found under a directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a directory containing PDF files",
				},
			},
			Required: []string{"path"},
		},
	}
}

// queryDocumentsTool returns the tool definition for query_documents
func queryDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_documents",
		Description: "Answer a question from the ingested documents, citing sources",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question in natural language",
				},
				"limit": limitProperty("Number of chunks used as context (1-100)"),
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the context to one document",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the context to one version (requires document_id)",
				},
				"search_mode": searchModeProperty(),
			},
			Required: []string{"query"},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Search ingested document chunks with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": limitProperty("Maximum number of results to return (1-100)"),
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"document_id": map[string]interface{}{
							"type":        "string",
							"description": "Only chunks of this document",
						},
						"version": map[string]interface{}{
							"type":        "string",
							"description": "Only chunks of this version (requires document_id)",
						},
						"min_relevance": map[string]interface{}{
							"type":        "number",
							"description": "Minimum relevance score threshold (0.0-1.0)",
							"minimum":     0.0,
							"maximum":     1.0,
						},
					},
				},
				"search_mode": searchModeProperty(),
			},
			Required: []string{"query"},
		},
	}
}

// listVersionsTool returns the tool definition for list_versions
func listVersionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_versions",
		Description: "List the stored versions of a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document identifier",
				},
			},
			Required: []string{"document_id"},
		},
	}
}

// compareVersionsTool returns the tool definition for compare_versions
func compareVersionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "compare_versions",
		Description: "Compare two versions of a document: line diff, similarity, metadata changes and an analysis",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document identifier",
				},
				"version1": map[string]interface{}{
					"type":        "string",
					"description": "Earlier version",
				},
				"version2": map[string]interface{}{
					"type":        "string",
					"description": "Later version",
				},
				"summarize": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, add a short executive summary of the changes",
					"default":     false,
				},
				"include_diff": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include the unified diff text",
					"default":     false,
				},
			},
			Required: []string{"document_id", "version1", "version2"},
		},
	}
}

// splitTextTool returns the tool definition for split_text
func splitTextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "split_text",
		Description: "Split text into chunks with the configured splitter, optionally overriding its parameters",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Text to split",
				},
				"chunk_size": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum chunk length",
					"minimum":     1,
				},
				"chunk_overlap": map[string]interface{}{
					"type":        "integer",
					"description": "Overlap between consecutive chunks (must be smaller than chunk_size)",
					"minimum":     0,
				},
				"chunk_method": map[string]interface{}{
					"type":        "string",
					"description": "Splitting strategy",
					"enum":        []string{"incremental", "recursive"},
				},
			},
			Required: []string{"text"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report document store statistics, health and active configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
