// Package rag answers questions from ingested PDFs.
//
// Service.Answer retrieves the most relevant chunks through the searcher,
// numbers them as "Document N" blocks in a prompt and asks the configured
// llm.Generator for an answer. Replies cite their sources by document,
// version and chunk index. Questions asked in Spanish get Spanish fallback
// replies when nothing relevant is found.
package rag
