package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/pdfrag-mcp/internal/chunker"
	"github.com/dshills/pdfrag-mcp/internal/embedder"
	"github.com/dshills/pdfrag-mcp/internal/logger"
	"github.com/dshills/pdfrag-mcp/internal/parser"
	"github.com/dshills/pdfrag-mcp/internal/storage"
	"github.com/dshills/pdfrag-mcp/pkg/types"
)

var (
	// ErrNoText is returned when a PDF yields no extractable text
	ErrNoText = errors.New("no text content extracted from PDF")
	// ErrIngestInProgress is returned when the same document ID is already being ingested
	ErrIngestInProgress = errors.New("ingestion already in progress for document")
	// ErrDownloadTooLarge is returned when a remote PDF exceeds the size limit
	ErrDownloadTooLarge = errors.New("download exceeds maximum size")
)

const defaultFilename = "document.pdf"

// Config contains configuration for the indexer
type Config struct {
	Chunking chunker.Config
	Method   chunker.Method
	Tokens   chunker.LengthFunc // Counts chunk tokens; nil uses the chars/4 estimate

	MaxChunksPerBatch int // Chunks per embedding request (default: embedder.DefaultBatchSize)
	Workers           int // Concurrent files in IngestFiles (default: runtime.NumCPU())

	DownloadTimeout time.Duration
	MaxDownloadSize int64
}

// Indexer coordinates the ingestion pipeline: parse -> split -> embed -> store
type Indexer struct {
	parser   *parser.Parser
	storage  storage.Storage
	embedder embedder.Embedder
	log      logger.Logger
	cfg      Config

	httpClient *http.Client
	locks      documentLocks
	now        func() time.Time
}

// Request describes one PDF to ingest
type Request struct {
	Data       []byte
	Filename   string
	DocumentID string            // Generated when empty
	Version    string            // Ingestion timestamp when empty
	Metadata   map[string]string // Extra metadata copied onto every chunk
}

// Result reports the outcome of a single ingestion
type Result struct {
	DocumentID    string
	Version       string
	Filename      string
	Title         string
	PageCount     int
	ChunksCount   int
	EmbeddedCount int
	PageErrors    int
	Replaced      bool // An earlier ingestion of the same version was overwritten

	ExtractDuration time.Duration
	SplitDuration   time.Duration
	EmbedDuration   time.Duration
	Duration        time.Duration
}

// FileError records a file that failed to ingest
type FileError struct {
	Path  string
	Error string
}

// Statistics summarizes a multi-file ingestion
type Statistics struct {
	Succeeded []*Result
	Failed    []FileError
	Duration  time.Duration
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, p *parser.Parser, cfg Config, log logger.Logger) (*Indexer, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if emb == nil {
		return nil, errors.New("embedder is required")
	}
	if p == nil {
		p = parser.New()
	}
	if log == nil {
		log = logger.Nop()
	}

	if cfg.Method == "" {
		cfg.Method = chunker.MethodIncremental
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking = chunker.DefaultConfig()
	}
	if _, err := chunker.New(cfg.Method, cfg.Chunking); err != nil {
		return nil, err
	}

	if cfg.MaxChunksPerBatch <= 0 {
		cfg.MaxChunksPerBatch = embedder.DefaultBatchSize
	}
	if cfg.MaxChunksPerBatch > embedder.MaxBatchSize {
		cfg.MaxChunksPerBatch = embedder.MaxBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}
	if cfg.MaxDownloadSize <= 0 {
		cfg.MaxDownloadSize = 100 * 1024 * 1024
	}

	return &Indexer{
		parser:     p,
		storage:    store,
		embedder:   emb,
		log:        log,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.DownloadTimeout},
		now:        time.Now,
	}, nil
}

// IngestPDF extracts, splits, embeds and stores one PDF. Re-ingesting an
// existing (document ID, version) pair replaces it.
func (idx *Indexer) IngestPDF(ctx context.Context, req Request) (*Result, error) {
	start := idx.now()

	if len(req.Data) == 0 {
		return nil, parser.ErrEmptyInput
	}
	if req.Filename == "" {
		req.Filename = defaultFilename
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}
	if req.Version == "" {
		req.Version = idx.now().UTC().Format(time.RFC3339)
	}

	lock := idx.locks.get(req.DocumentID)
	if !lock.TryAcquire() {
		return nil, fmt.Errorf("%w %s", ErrIngestInProgress, req.DocumentID)
	}
	defer lock.Release()

	log := idx.log.With("document_id", req.DocumentID, "version", req.Version, "filename", req.Filename)
	result := &Result{DocumentID: req.DocumentID, Version: req.Version, Filename: req.Filename}

	// Extract
	t := idx.now()
	parsed, err := idx.parser.Parse(ctx, req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", req.Filename, err)
	}
	result.ExtractDuration = idx.now().Sub(t)
	result.PageCount = parsed.Metadata.PageCount
	result.PageErrors = len(parsed.Errors)
	result.Title = parsed.Metadata.Title
	for _, pe := range parsed.Errors {
		log.Warn("page extraction failed", "page", pe.Page, "error", pe.Message)
	}

	if strings.TrimSpace(parsed.Text) == "" {
		return nil, fmt.Errorf("%s: %w", req.Filename, ErrNoText)
	}

	// Split
	t = idx.now()
	chunks, err := idx.split(parsed, req, log)
	if err != nil {
		return nil, err
	}
	result.SplitDuration = idx.now().Sub(t)
	result.ChunksCount = len(chunks)
	log.Info("document split", "chunks", len(chunks), "method", idx.cfg.Method)

	// Embed outside the transaction so the database is not held during API calls
	t = idx.now()
	vectors, err := idx.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	result.EmbedDuration = idx.now().Sub(t)
	result.EmbeddedCount = len(vectors)

	doc := &types.Document{
		DocumentID:   req.DocumentID,
		Version:      req.Version,
		Filename:     req.Filename,
		DocumentType: types.DocumentPDF,
		DocumentHash: parsed.Metadata.DocumentHash,
		Title:        parsed.Metadata.Title,
		Author:       parsed.Metadata.Author,
		Subject:      parsed.Metadata.Subject,
		PageCount:    parsed.Metadata.PageCount,
		Metadata:     documentMetadata(parsed, req),
		ChunkMethod:  string(idx.cfg.Method),
		ChunksCount:  len(chunks),
		IngestedAt:   idx.now().UTC(),
	}

	replaced, err := idx.store(ctx, doc, chunks, vectors)
	if err != nil {
		return nil, err
	}
	result.Replaced = replaced

	result.Duration = idx.now().Sub(start)
	log.Info("document ingested", "chunks", result.ChunksCount, "pages", result.PageCount, "replaced", replaced, "duration", result.Duration)
	return result, nil
}

// split runs the configured splitter with progress reported to log
func (idx *Indexer) split(parsed *types.ParseResult, req Request, log logger.Logger) ([]*types.Chunk, error) {
	splitter, err := chunker.New(idx.cfg.Method, idx.cfg.Chunking, chunker.WithObserver(splitObserver(log)))
	if err != nil {
		return nil, err
	}

	base := make(map[string]string, len(req.Metadata)+8)
	maps.Copy(base, parsed.Metadata.ToMap())
	maps.Copy(base, req.Metadata)
	base["document_id"] = req.DocumentID
	base["version"] = req.Version
	base["filename"] = req.Filename

	chunks := chunker.NewChunker(splitter, idx.cfg.Tokens).ChunkText(parsed.Text, base)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Filename, ErrNoText)
	}
	return chunks, nil
}

// splitObserver logs splitter events at a level matching their severity
func splitObserver(log logger.Logger) chunker.Observer {
	return func(e chunker.Event) {
		switch e.Kind {
		case chunker.EventBatchFailed:
			log.Warn("split batch failed", "batch", e.Batch, "error", e.Err)
		case chunker.EventDeadline:
			log.Warn("split deadline reached", "paragraph", e.Paragraph, "paragraphs", e.Paragraphs, "elapsed", e.Elapsed)
		case chunker.EventFallback:
			log.Warn("split fell back", "state", e.State, "error", e.Err)
		case chunker.EventDone:
			log.Debug("split finished", "state", e.State, "chunks", e.Chunks, "elapsed", e.Elapsed)
		default:
			log.Debug("split progress", "event", e.Kind, "paragraph", e.Paragraph, "paragraphs", e.Paragraphs, "chunks", e.Chunks)
		}
	}
}

// embed generates one embedding per chunk, MaxChunksPerBatch chunks per request
func (idx *Indexer) embed(ctx context.Context, chunks []*types.Chunk) ([]*embedder.Embedding, error) {
	out := make([]*embedder.Embedding, 0, len(chunks))
	batchSize := idx.cfg.MaxChunksPerBatch

	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Content)
		}

		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", i, end-1, err)
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d embeddings for %d chunks", len(resp.Embeddings), len(texts))
		}
		out = append(out, resp.Embeddings...)
	}

	return out, nil
}

// store writes the document, its chunks and their embeddings in one transaction
func (idx *Indexer) store(ctx context.Context, doc *types.Document, chunks []*types.Chunk, vectors []*embedder.Embedding) (bool, error) {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	replaced := false
	existing, err := tx.GetDocument(ctx, doc.DocumentID, doc.Version)
	switch {
	case err == nil:
		if err := tx.DeleteDocument(ctx, existing.ID); err != nil {
			return false, fmt.Errorf("failed to replace existing version: %w", err)
		}
		replaced = true
	case !errors.Is(err, storage.ErrNotFound):
		return false, err
	}

	if err := tx.CreateDocument(ctx, doc); err != nil {
		return false, err
	}

	for _, c := range chunks {
		c.DocumentID = doc.ID
	}
	if err := tx.InsertChunks(ctx, chunks); err != nil {
		return false, err
	}

	for i, c := range chunks {
		v := vectors[i]
		err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   c.ID,
			Vector:    storage.SerializeVector(v.Vector),
			Dimension: len(v.Vector),
			Provider:  v.Provider,
			Model:     v.Model,
		})
		if err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return replaced, nil
}

// documentMetadata merges PDF metadata with caller metadata for the document row
func documentMetadata(parsed *types.ParseResult, req Request) map[string]string {
	m := parsed.Metadata.ToMap()
	maps.Copy(m, req.Metadata)
	return m
}

// IngestFile ingests a PDF from disk. Filename defaults to the base name of path.
func (idx *Indexer) IngestFile(ctx context.Context, filePath string, req Request) (*Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	req.Data = data
	if req.Filename == "" {
		req.Filename = filepath.Base(filePath)
	}
	return idx.IngestPDF(ctx, req)
}

// IngestURL downloads a PDF and ingests it. The download honors the
// configured timeout and size limit.
func (idx *Indexer) IngestURL(ctx context.Context, rawURL string, req Request) (*Result, error) {
	data, name, err := idx.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	req.Data = data
	if req.Filename == "" {
		req.Filename = name
	}
	return idx.IngestPDF(ctx, req)
}

func (idx *Indexer) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", fmt.Errorf("invalid URL %q", rawURL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := idx.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > idx.cfg.MaxDownloadSize {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrDownloadTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, idx.cfg.MaxDownloadSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	if int64(len(data)) > idx.cfg.MaxDownloadSize {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrDownloadTooLarge, idx.cfg.MaxDownloadSize)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = defaultFilename
	}
	return data, name, nil
}

// IngestFiles ingests PDFs concurrently. A failing file is recorded and never
// stops the rest; only context cancellation aborts the batch.
func (idx *Indexer) IngestFiles(ctx context.Context, paths []string) (*Statistics, error) {
	start := idx.now()
	stats := &Statistics{}

	semaphore := make(chan struct{}, idx.cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	results := make([]*Result, len(paths))
	for i, p := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			res, err := idx.IngestFile(gctx, p, Request{})
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				idx.log.Error("ingestion failed", "path", p, "error", err)
				mu.Lock()
				stats.Failed = append(stats.Failed, FileError{Path: p, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Keep successes in input order
	for _, r := range results {
		if r != nil {
			stats.Succeeded = append(stats.Succeeded, r)
		}
	}
	stats.Duration = idx.now().Sub(start)
	return stats, nil
}

// IngestDirectory ingests every *.pdf under dir, skipping hidden directories
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string) (*Statistics, error) {
	files, err := discoverFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	idx.log.Info("ingesting directory", "path", dir, "files", len(files))
	return idx.IngestFiles(ctx, files)
}

// discoverFiles finds all PDF files under root
func discoverFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.EqualFold(filepath.Ext(p), ".pdf") {
			files = append(files, p)
		}
		return nil
	})

	return files, err
}
