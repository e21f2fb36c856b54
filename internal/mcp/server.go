package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/pdfrag-mcp/internal/chunker"
	"github.com/dshills/pdfrag-mcp/internal/compare"
	"github.com/dshills/pdfrag-mcp/internal/config"
	"github.com/dshills/pdfrag-mcp/internal/embedder"
	"github.com/dshills/pdfrag-mcp/internal/indexer"
	"github.com/dshills/pdfrag-mcp/internal/llm"
	"github.com/dshills/pdfrag-mcp/internal/logger"
	"github.com/dshills/pdfrag-mcp/internal/parser"
	"github.com/dshills/pdfrag-mcp/internal/rag"
	"github.com/dshills/pdfrag-mcp/internal/searcher"
	"github.com/dshills/pdfrag-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "pdfrag-mcp"
)

// ServerVersion is reported to MCP clients; main overrides it at startup
var ServerVersion = "1.0.0"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	rag      *rag.Service
	compare  *compare.Service
	settings *config.Settings
	chunking chunker.Config
	method   chunker.Method
	log      logger.Logger
}

// NewServer opens the database named by settings and wires the ingestion and
// retrieval services behind the MCP tools.
func NewServer(settings *config.Settings, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}

	if settings.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(settings.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// One embedder serves ingestion and search so both share its cache
	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	gen, err := llm.New(llm.Config{
		Provider:    settings.LLM.Provider,
		Model:       settings.LLM.Model,
		Temperature: settings.LLM.Temperature,
		MaxTokens:   settings.LLM.MaxTokens,
		APIKey:      settings.LLM.APIKey,
	})
	if err != nil {
		// Ingestion and search still work without a model
		log.Warn("answer generation disabled", "provider", settings.LLM.Provider, "error", err)
		gen = unavailableGenerator{err: err}
	}

	s, err := newServer(settings, store, emb, gen, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

// newServer builds a Server from already constructed components
func newServer(settings *config.Settings, store storage.Storage, emb embedder.Embedder, gen llm.Generator, log logger.Logger) (*Server, error) {
	chunking, method, err := settings.ChunkerConfig()
	if err != nil {
		return nil, err
	}

	tokens, err := chunker.NewTokenLength()
	if err != nil {
		log.Warn("token counter unavailable, estimating", "error", err)
		tokens = nil
	}
	if settings.Chunking.LengthMeasure == config.LengthTokens {
		if tokens == nil {
			return nil, fmt.Errorf("token length measure requested but tokenizer failed to load")
		}
		chunking.Length = tokens
	}

	p := parser.New(
		parser.WithMaxPages(settings.PDF.MaxPages),
		parser.WithPageBatchSize(settings.PDF.PageBatchSize),
	)

	idx, err := indexer.New(store, emb, p, indexer.Config{
		Chunking:          chunking,
		Method:            method,
		Tokens:            tokens,
		MaxChunksPerBatch: settings.Ingest.MaxChunksPerBatch,
		Workers:           settings.Ingest.Workers,
		DownloadTimeout:   settings.PDF.DownloadTimeout,
		MaxDownloadSize:   settings.PDF.MaxDownloadSize,
	}, log.With("component", "indexer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	srch := searcher.NewSearcher(store, emb)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:  store,
		embedder: emb,
		indexer:  idx,
		searcher: srch,
		rag:      rag.NewService(srch, store, gen, settings.Search.Limit, log.With("component", "rag")),
		compare:  compare.NewService(store, gen, log.With("component", "compare")),
		settings: settings,
		chunking: chunking,
		method:   method,
		log:      log,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close releases the embedder and the database
func (s *Server) Close() error {
	_ = s.embedder.Close()
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestPDFTool(), s.handleIngestPDF)
	s.mcp.AddTool(ingestDirectoryTool(), s.handleIngestDirectory)
	s.mcp.AddTool(queryDocumentsTool(), s.handleQueryDocuments)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(listVersionsTool(), s.handleListVersions)
	s.mcp.AddTool(compareVersionsTool(), s.handleCompareVersions)
	s.mcp.AddTool(splitTextTool(), s.handleSplitText)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// unavailableGenerator reports why no model is configured
type unavailableGenerator struct {
	err error
}

func (u unavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("no language model configured: %w", u.err)
}
