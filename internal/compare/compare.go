package compare

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/pdfrag-mcp/internal/llm"
	"github.com/dshills/pdfrag-mcp/internal/logger"
	"github.com/dshills/pdfrag-mcp/pkg/types"
)

// maxPromptChars bounds each version's text in the analysis prompt
const maxPromptChars = 5000

// metadataKeys are the fields reported by MetadataChanges
var metadataKeys = []string{"title", "author", "subject", "creator", "producer", "page_count"}

var ErrMissingVersion = errors.New("document ID and both versions are required")

// Store reads stored document versions and their chunks
type Store interface {
	GetDocument(ctx context.Context, documentID, version string) (*types.Document, error)
	ListChunksByDocument(ctx context.Context, documentRowID int64) ([]*types.Chunk, error)
}

// Change is a metadata value before and after
type Change struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Comparison is the result of comparing two versions of a document
type Comparison struct {
	DocumentID      string            `json:"document_id"`
	Version1        string            `json:"version1"`
	Version2        string            `json:"version2"`
	Analysis        string            `json:"comparison"`
	Summary         string            `json:"summary,omitempty"`
	Diff            TextDiff          `json:"diff"`
	MetadataChanges map[string]Change `json:"metadata_changes"`
	PageCountDiff   int               `json:"page_count_diff"`
}

// Service compares stored document versions
type Service struct {
	store Store
	llm   llm.Generator
	log   logger.Logger
}

// NewService creates a comparison service
func NewService(store Store, gen llm.Generator, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, llm: gen, log: log}
}

// CompareVersions rebuilds both versions from their chunks, diffs them and
// asks the model for a structured analysis.
func (s *Service) CompareVersions(ctx context.Context, documentID, version1, version2 string) (*Comparison, error) {
	if documentID == "" || version1 == "" || version2 == "" {
		return nil, ErrMissingVersion
	}

	doc1, text1, err := s.versionText(ctx, documentID, version1)
	if err != nil {
		return nil, err
	}
	doc2, text2, err := s.versionText(ctx, documentID, version2)
	if err != nil {
		return nil, err
	}

	s.log.Info("generating comparison", "document_id", documentID, "version1", version1, "version2", version2)
	analysis, err := s.llm.Generate(ctx, comparisonPrompt(documentID, version1, text1, version2, text2))
	if err != nil {
		return nil, fmt.Errorf("failed to generate comparison: %w", err)
	}

	meta1, meta2 := documentFields(doc1), documentFields(doc2)
	return &Comparison{
		DocumentID:      documentID,
		Version1:        version1,
		Version2:        version2,
		Analysis:        strings.TrimSpace(analysis),
		Diff:            DiffTexts(text1, text2),
		MetadataChanges: MetadataChanges(meta1, meta2),
		PageCountDiff:   doc2.PageCount - doc1.PageCount,
	}, nil
}

// SummarizeChanges compares two versions and condenses the analysis into a
// short executive summary.
func (s *Service) SummarizeChanges(ctx context.Context, documentID, version1, version2 string) (*Comparison, error) {
	cmp, err := s.CompareVersions(ctx, documentID, version1, version2)
	if err != nil {
		return nil, err
	}

	s.log.Info("generating summary", "document_id", documentID, "version1", version1, "version2", version2)
	summary, err := s.llm.Generate(ctx, summaryPrompt(cmp.Analysis))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize comparison: %w", err)
	}
	cmp.Summary = strings.TrimSpace(summary)
	return cmp, nil
}

// versionText joins the chunks of one version in index order
func (s *Service) versionText(ctx context.Context, documentID, version string) (*types.Document, string, error) {
	doc, err := s.store.GetDocument(ctx, documentID, version)
	if err != nil {
		return nil, "", fmt.Errorf("version %s of %s: %w", version, documentID, err)
	}

	chunks, err := s.store.ListChunksByDocument(ctx, doc.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load chunks of %s@%s: %w", documentID, version, err)
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return doc, strings.Join(parts, "\n\n"), nil
}

// MetadataChanges reports the tracked fields whose values differ
func MetadataChanges(before, after map[string]string) map[string]Change {
	changes := make(map[string]Change)
	for _, key := range metadataKeys {
		if before[key] != after[key] {
			changes[key] = Change{From: before[key], To: after[key]}
		}
	}
	return changes
}

// documentFields merges the typed document fields over its metadata map
func documentFields(doc *types.Document) map[string]string {
	fields := make(map[string]string, len(doc.Metadata)+4)
	for k, v := range doc.Metadata {
		fields[k] = v
	}
	if doc.Title != "" {
		fields["title"] = doc.Title
	}
	if doc.Author != "" {
		fields["author"] = doc.Author
	}
	if doc.Subject != "" {
		fields["subject"] = doc.Subject
	}
	fields["page_count"] = strconv.Itoa(doc.PageCount)
	return fields
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func comparisonPrompt(documentID, v1, text1, v2, text2 string) string {
	var sb strings.Builder
	sb.WriteString("I need you to compare two versions of a document and identify the key differences.\n\n")
	fmt.Fprintf(&sb, "Document ID: %s\n\n", documentID)
	fmt.Fprintf(&sb, "Version 1 (%s):\n%s\n\n", v1, truncate(text1, maxPromptChars))
	fmt.Fprintf(&sb, "Version 2 (%s):\n%s\n\n", v2, truncate(text2, maxPromptChars))
	sb.WriteString("Please analyze these two versions and provide:\n")
	sb.WriteString("1. A summary of the main differences\n")
	sb.WriteString("2. What content was added in version 2\n")
	sb.WriteString("3. What content was removed in version 2\n")
	sb.WriteString("4. Any changes in structure or organization\n\n")
	sb.WriteString("Format your response as a structured analysis.")
	return sb.String()
}

func summaryPrompt(analysis string) string {
	return "Based on the following comparison between two document versions, provide a concise summary of the changes.\n\n" +
		analysis +
		"\n\nPlease provide a brief, executive summary of the key changes (no more than 3-5 bullet points)."
}
