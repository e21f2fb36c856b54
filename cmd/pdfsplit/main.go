// Command pdfsplit runs the configured text splitter over a PDF or text file
// without touching the database, printing the resulting chunks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/pdfrag-mcp/internal/chunker"
	"github.com/dshills/pdfrag-mcp/internal/config"
	"github.com/dshills/pdfrag-mcp/internal/logger"
	"github.com/dshills/pdfrag-mcp/internal/parser"
)

type splitOptions struct {
	envFile  string
	size     int
	overlap  int
	method   string
	tokens   bool
	asJSON   bool
	verbose  bool
	maxPages int
}

type chunkOutput struct {
	Index   int    `json:"index"`
	Length  int    `json:"length"`
	Content string `json:"content"`
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &splitOptions{}

	cmd := &cobra.Command{
		Use:          "pdfsplit <file>",
		Short:        "Split a PDF or text file into chunks",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.envFile, "env", ".env", "env file with PDFRAG_* settings")
	f.IntVar(&opts.size, "size", 0, "chunk size (overrides PDFRAG_CHUNK_SIZE)")
	f.IntVar(&opts.overlap, "overlap", 0, "chunk overlap (overrides PDFRAG_CHUNK_OVERLAP)")
	f.StringVar(&opts.method, "method", "", "chunk method: incremental or recursive")
	f.BoolVar(&opts.tokens, "tokens", false, "measure chunk size in tokens")
	f.BoolVar(&opts.asJSON, "json", false, "print chunks as JSON")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log splitter progress to stderr")
	f.IntVar(&opts.maxPages, "max-pages", 0, "pages to extract (overrides PDFRAG_MAX_PAGES)")

	return cmd
}

func run(cmd *cobra.Command, opts *splitOptions, path string) error {
	settings, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("size") {
		settings.Chunking.ChunkSize = opts.size
	}
	if flags.Changed("overlap") {
		settings.Chunking.ChunkOverlap = opts.overlap
	}
	if flags.Changed("method") {
		settings.Chunking.Method = opts.method
	}
	if flags.Changed("max-pages") {
		settings.PDF.MaxPages = opts.maxPages
	}
	if opts.tokens {
		settings.Chunking.LengthMeasure = config.LengthTokens
	}

	logCfg := logger.DefaultConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logCfg.Level = logger.InfoLevel
	if opts.verbose {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.NewLogger(logCfg)

	cfg, method, err := settings.ChunkerConfig()
	if err != nil {
		return err
	}
	if settings.Chunking.LengthMeasure == config.LengthTokens {
		tokens, err := chunker.NewTokenLength()
		if err != nil {
			return fmt.Errorf("failed to load tokenizer: %w", err)
		}
		cfg.Length = tokens
	}

	splitter, err := chunker.New(method, cfg, chunker.WithObserver(func(e chunker.Event) {
		log.Debug("splitter event",
			"kind", e.Kind,
			"state", e.State,
			"paragraph", e.Paragraph,
			"paragraphs", e.Paragraphs,
			"batch", e.Batch,
			"chunks", e.Chunks,
			"elapsed", e.Elapsed)
	}))
	if err != nil {
		return err
	}

	text, err := readText(cmd.Context(), path, settings, log)
	if err != nil {
		return err
	}

	length := cfg.Length
	if length == nil {
		length = chunker.RuneLength
	}

	parts := splitter.Split(text)
	out := make([]chunkOutput, len(parts))
	for i, part := range parts {
		out[i] = chunkOutput{Index: i, Length: length(part), Content: part}
	}

	log.Info("split complete", "file", filepath.Base(path), "method", method, "chunks", len(out))
	return printChunks(cmd.OutOrStdout(), out, opts.asJSON)
}

// readText extracts PDF text, or reads any other file as plain text
func readText(ctx context.Context, path string, settings *config.Settings, log logger.Logger) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	p := parser.New(
		parser.WithMaxPages(settings.PDF.MaxPages),
		parser.WithPageBatchSize(settings.PDF.PageBatchSize),
	)
	result, err := p.ParseFile(ctx, path)
	if err != nil {
		return "", err
	}
	for _, pe := range result.Errors {
		log.Warn("page skipped", "page", pe.Page, "error", pe.Message)
	}
	return result.Text, nil
}

func printChunks(w io.Writer, chunks []chunkOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(chunks)
	}

	for _, c := range chunks {
		if _, err := fmt.Fprintf(w, "--- chunk %d (%d) ---\n%s\n", c.Index, c.Length, c.Content); err != nil {
			return err
		}
	}
	return nil
}
