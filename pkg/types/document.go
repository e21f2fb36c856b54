package types

import (
	"errors"
	"time"
)

// DocumentType identifies the source format of an ingested document
type DocumentType string

const (
	DocumentPDF DocumentType = "pdf"
)

// Document is one ingested version of a source document
type Document struct {
	// Identification
	ID         int64  // Row ID, unique per (DocumentID, Version)
	DocumentID string // Caller supplied or generated identifier shared by all versions
	Version    string

	// Source
	Filename     string
	DocumentType DocumentType
	DocumentHash string // SHA-256 of the raw PDF bytes, hex encoded

	// Extracted metadata
	Title     string
	Author    string
	Subject   string
	PageCount int
	Metadata  map[string]string

	// Ingestion
	ChunkMethod string
	ChunksCount int
	IngestedAt  time.Time
}

// Validate checks that the document carries the fields storage requires
func (d *Document) Validate() error {
	if d.DocumentID == "" {
		return errors.New("document ID is required")
	}

	if d.Version == "" {
		return errors.New("document version is required")
	}

	if d.Filename == "" {
		return errors.New("filename is required")
	}

	if d.ChunksCount < 0 {
		return errors.New("chunks count must not be negative")
	}

	return nil
}

// DisplayTitle returns the document title, or the filename when the PDF has none
func (d *Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Filename
}

// VersionInfo summarizes one stored version of a document
type VersionInfo struct {
	Version     string
	Filename    string
	Title       string
	PageCount   int
	ChunksCount int
	IngestedAt  time.Time
}
