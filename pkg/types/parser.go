package types

import (
	"strconv"
	"time"
)

// ParseResult represents the output of parsing a PDF file
type ParseResult struct {
	// Extracted data
	Text     string
	Metadata PDFMetadata

	// Pages that could not be read; extraction continues past them
	Errors []ParseError
}

// PDFMetadata holds the document information dictionary plus derived fields
type PDFMetadata struct {
	Title            string
	Author           string
	Subject          string
	Creator          string
	Producer         string
	CreationDate     string
	ModificationDate string

	PageCount     int
	DocumentHash  string
	ProcessedDate time.Time
}

// ToMap flattens the metadata into the string map stored alongside a document
func (m PDFMetadata) ToMap() map[string]string {
	out := map[string]string{
		"page_count":     strconv.Itoa(m.PageCount),
		"document_hash":  m.DocumentHash,
		"processed_date": m.ProcessedDate.Format(time.RFC3339),
	}

	optional := map[string]string{
		"title":             m.Title,
		"author":            m.Author,
		"subject":           m.Subject,
		"creator":           m.Creator,
		"producer":          m.Producer,
		"creation_date":     m.CreationDate,
		"modification_date": m.ModificationDate,
	}
	for k, v := range optional {
		if v != "" {
			out[k] = v
		}
	}

	return out
}

// ParseError represents a page that failed to extract
type ParseError struct {
	Page    int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return "page " + strconv.Itoa(pe.Page) + ": " + pe.Message
}

// HasErrors returns true if any pages failed to extract
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError records a page extraction failure
func (pr *ParseResult) AddError(page int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		Page:    page,
		Message: msg,
	})
}
