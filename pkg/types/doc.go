// Package types provides shared type definitions for the pdfrag MCP server.
//
// This package defines domain types used across multiple components,
// including documents, chunks, parse results, and search results.
//
// # Core Types
//
// Document is one ingested version of a PDF. All versions of the same source
// share a DocumentID and differ by Version:
//
//	doc := &types.Document{
//	    DocumentID: "employee-handbook",
//	    Version:    "2024-01",
//	    Filename:   "handbook.pdf",
//	}
//
// Chunk is a size-bounded section of extracted text, carrying its position
// within the document version:
//
//	chunk := &types.Chunk{
//	    Content: text,
//	    Index:   0,
//	    Total:   12,
//	}
//	chunk.ComputeContentHash()
//
// # Search Results
//
// SearchResult combines chunk content with the document version it came from:
//
//	result := &types.SearchResult{
//	    ChunkID:        123,
//	    Rank:           1,
//	    RelevanceScore: 0.92,
//	    Document:       &types.DocumentRef{DocumentID: "employee-handbook", Version: "2024-01"},
//	    Content:        chunkContent,
//	}
//
// Relevance scores are normalized to [0, 1] range, with higher values indicating
// better matches.
package types
