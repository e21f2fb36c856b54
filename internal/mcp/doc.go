// Package mcp implements the Model Context Protocol (MCP) server for pdfrag.
//
// The MCP server exposes eight tools to AI assistants:
//   - ingest_pdf: Extract, chunk, embed and store a PDF from a path or URL
//   - ingest_directory: Ingest every PDF under a directory
//   - query_documents: Answer a question from the stored documents with sources
//   - search_documents: Hybrid, vector or keyword search over stored chunks
//   - list_versions: List the stored versions of a document
//   - compare_versions: Diff two versions and ask the model for an analysis
//   - split_text: Run the configured splitter on arbitrary text
//   - get_status: Store statistics, health and active configuration
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Tool results are returned as indented JSON text.
//
// # Tool: ingest_pdf
//
//	Request:
//	{
//	  "name": "ingest_pdf",
//	  "arguments": {
//	    "path": "/srv/contracts/msa-2024.pdf",
//	    "document_id": "msa",
//	    "version": "2024",
//	    "metadata": {"department": "legal"}
//	  }
//	}
//
//	Response:
//	{
//	  "ingested": true,
//	  "document_id": "msa",
//	  "version": "2024",
//	  "page_count": 12,
//	  "chunks_created": 41,
//	  "replaced": false
//	}
//
// Omitting document_id generates a UUID; omitting version uses the ingestion
// timestamp. Ingesting an existing version replaces it.
//
// # Tool: query_documents
//
//	Request:
//	{
//	  "name": "query_documents",
//	  "arguments": {"query": "What is the notice period?", "document_id": "msa"}
//	}
//
//	Response:
//	{
//	  "query": "What is the notice period?",
//	  "response": "Sixty days.",
//	  "sources": [
//	    {"title": "Master Services Agreement", "document_id": "msa",
//	     "version": "2024", "filename": "msa-2024.pdf", "chunk_index": 7, "score": 0.032}
//	  ]
//	}
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "pdfrag": {
//	      "command": "/usr/local/bin/pdfrag",
//	      "env": {
//	        "OPENAI_API_KEY": "your-api-key",
//	        "PDFRAG_EMBEDDING_PROVIDER": "openai"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values carrying a code and structured data:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, provider, filesystem)
//   - -32001: Document or version not found
//   - -32002: Ingestion of the same document already in progress
//   - -32003: PDF has no extractable text
//   - -32004: Empty query
//
// The server logs to stderr; stdout is reserved for the protocol.
package mcp
