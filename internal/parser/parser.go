package parser

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/dshills/pdfrag-mcp/pkg/types"
)

const (
	// DefaultMaxPages limits how many pages are extracted (0 means unlimited)
	DefaultMaxPages = 100

	// DefaultPageBatchSize is the number of pages extracted between cancellation checks
	DefaultPageBatchSize = 10

	pageSeparator = "\n\n"
)

// Parser errors
var (
	ErrEmptyInput = errors.New("empty PDF input")
	ErrNotPDF     = errors.New("input is not a PDF document")
)

// Parser extracts text and metadata from PDF documents
type Parser struct {
	maxPages      int
	pageBatchSize int
	now           func() time.Time
}

// Option configures a Parser
type Option func(*Parser)

// WithMaxPages limits extraction to the first n pages; 0 disables the limit
func WithMaxPages(n int) Option {
	return func(p *Parser) {
		if n >= 0 {
			p.maxPages = n
		}
	}
}

// WithPageBatchSize sets how many pages are read between cancellation checks
func WithPageBatchSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.pageBatchSize = n
		}
	}
}

// New creates a new Parser instance
func New(opts ...Option) *Parser {
	p := &Parser{
		maxPages:      DefaultMaxPages,
		pageBatchSize: DefaultPageBatchSize,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads a PDF from disk and extracts its text and metadata
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*types.ParseResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(ctx, data)
}

// Parse extracts text and metadata from raw PDF bytes. Pages that fail to
// extract are recorded in the result and skipped.
func (p *Parser) Parse(ctx context.Context, data []byte) (*types.ParseResult, error) {
	r, err := openReader(data)
	if err != nil {
		return nil, err
	}

	result := &types.ParseResult{
		Metadata: p.metadata(r, data),
	}

	text, err := p.extractText(ctx, r, result)
	if err != nil {
		return nil, err
	}
	result.Text = text

	return result, nil
}

// ExtractText returns the text of the first pages of the document, each page
// followed by a blank line.
func (p *Parser) ExtractText(ctx context.Context, data []byte) (string, error) {
	r, err := openReader(data)
	if err != nil {
		return "", err
	}
	return p.extractText(ctx, r, &types.ParseResult{})
}

// ExtractMetadata returns the document information dictionary, page count
// and content hash.
func (p *Parser) ExtractMetadata(data []byte) (types.PDFMetadata, error) {
	r, err := openReader(data)
	if err != nil {
		return types.PDFMetadata{}, err
	}
	return p.metadata(r, data), nil
}

// DocumentHash returns the hex SHA-256 of the raw document bytes
func DocumentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// openReader validates the header and opens a reader over data
func openReader(data []byte) (r *pdf.Reader, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	// The reader panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("failed to open PDF: %v", rec)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return r, nil
}

func (p *Parser) extractText(ctx context.Context, r *pdf.Reader, result *types.ParseResult) (string, error) {
	total := r.NumPage()
	if p.maxPages > 0 && total > p.maxPages {
		total = p.maxPages
	}

	var sb strings.Builder
	for batchStart := 1; batchStart <= total; batchStart += p.pageBatchSize {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("extraction cancelled at page %d: %w", batchStart, err)
		}

		batchEnd := batchStart + p.pageBatchSize - 1
		if batchEnd > total {
			batchEnd = total
		}

		for i := batchStart; i <= batchEnd; i++ {
			text, err := pageText(r, i)
			if err != nil {
				result.AddError(i, err.Error())
				continue
			}
			if text == "" {
				continue
			}
			sb.WriteString(text)
			sb.WriteString(pageSeparator)
		}
	}

	return sb.String(), nil
}

// pageText extracts one page, converting reader panics into errors
func pageText(r *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to extract page: %v", rec)
		}
	}()

	page := r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (p *Parser) metadata(r *pdf.Reader, data []byte) types.PDFMetadata {
	meta := types.PDFMetadata{
		PageCount:     r.NumPage(),
		DocumentHash:  DocumentHash(data),
		ProcessedDate: p.now().UTC(),
	}

	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}

	meta.Title = infoText(info, "Title")
	meta.Author = infoText(info, "Author")
	meta.Subject = infoText(info, "Subject")
	meta.Creator = infoText(info, "Creator")
	meta.Producer = infoText(info, "Producer")
	meta.CreationDate = infoText(info, "CreationDate")
	meta.ModificationDate = infoText(info, "ModDate")

	return meta
}

func infoText(info pdf.Value, key string) string {
	return strings.TrimSpace(info.Key(key).Text())
}
