package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/pdfrag-mcp/internal/llm"
	"github.com/dshills/pdfrag-mcp/internal/logger"
	"github.com/dshills/pdfrag-mcp/internal/searcher"
	"github.com/dshills/pdfrag-mcp/internal/storage"
	"github.com/dshills/pdfrag-mcp/pkg/types"
)

// DefaultLimit is the number of chunks used as context when Options.Limit is unset
const DefaultLimit = 10

var (
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrEmptyDocumentID = errors.New("document ID cannot be empty")
)

// Searcher finds the chunks relevant to a question
type Searcher interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// VersionStore lists the stored versions of a document
type VersionStore interface {
	ListVersions(ctx context.Context, documentID string) ([]types.VersionInfo, error)
}

// Options narrows the context retrieved for a question
type Options struct {
	Limit      int
	DocumentID string
	Version    string
	Mode       searcher.SearchMode
}

// Source cites one chunk used to answer
type Source struct {
	Title      string  `json:"title"`
	DocumentID string  `json:"document_id"`
	Version    string  `json:"version"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// Answer is the reply to a question. Error is set when retrieval or
// generation failed and Response holds the apology shown instead.
type Answer struct {
	Query    string   `json:"query"`
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
	Error    string   `json:"error,omitempty"`
}

// Service answers questions over the ingested documents
type Service struct {
	searcher Searcher
	versions VersionStore
	llm      llm.Generator
	limit    int
	log      logger.Logger
}

// NewService wires a search backend, version store and generator together.
// limit <= 0 selects DefaultLimit.
func NewService(s Searcher, versions VersionStore, gen llm.Generator, limit int, log logger.Logger) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		searcher: s,
		versions: versions,
		llm:      gen,
		limit:    limit,
		log:      log,
	}
}

// Answer retrieves context for query and asks the model to answer from it.
// Failures after validation are reported inside the Answer.
func (s *Service) Answer(ctx context.Context, query string, opts Options) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	lang := detectLanguage(query)
	answer := &Answer{Query: query, Sources: []Source{}}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.limit
	}

	req := searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     opts.Mode,
		UseCache: true,
	}
	if opts.DocumentID != "" {
		req.Filters = &storage.SearchFilters{DocumentID: opts.DocumentID, Version: opts.Version}
	}

	s.log.Info("searching", "query", query, "limit", limit)
	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		s.log.Error("search failed", "query", query, "error", err)
		answer.Response = lang.noResults
		answer.Error = err.Error()
		return answer, nil
	}

	if len(resp.Results) == 0 {
		s.log.Warn("no relevant documents found", "query", query)
		answer.Response = lang.notEnoughInfo
		return answer, nil
	}

	s.log.Info("generating response", "query", query, "language", lang.name, "context_chunks", len(resp.Results))
	response, err := s.llm.Generate(ctx, buildPrompt(query, resp.Results))
	if err != nil {
		s.log.Error("generation failed", "query", query, "error", err)
		answer.Response = lang.generationFailed
		answer.Error = err.Error()
		return answer, nil
	}

	answer.Response = strings.TrimSpace(response)
	for _, r := range resp.Results {
		answer.Sources = append(answer.Sources, sourceFor(r))
	}

	return answer, nil
}

// Versions lists the stored versions of documentID in version order
func (s *Service) Versions(ctx context.Context, documentID string) ([]types.VersionInfo, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}

	versions, err := s.versions.ListVersions(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", documentID, err)
	}
	if len(versions) == 0 {
		s.log.Warn("no versions found", "document_id", documentID)
	}
	return versions, nil
}

func sourceFor(r types.SearchResult) Source {
	src := Source{
		Title:      "Unknown",
		DocumentID: "Unknown",
		Version:    "Unknown",
		Filename:   "Unknown",
		ChunkIndex: r.ChunkIndex,
		Score:      r.RelevanceScore,
	}
	if d := r.Document; d != nil {
		src.Title = orUnknown(d.Title)
		src.DocumentID = orUnknown(d.DocumentID)
		src.Version = orUnknown(d.Version)
		src.Filename = orUnknown(d.Filename)
	}
	return src
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
