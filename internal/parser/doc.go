// Package parser extracts plain text and document metadata from PDF files.
//
// # Basic Usage
//
//	p := parser.New(parser.WithMaxPages(100))
//	result, err := p.ParseFile(ctx, "handbook.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Metadata.Title, result.Metadata.PageCount)
//
// # Text Extraction
//
// Pages are read in order, in batches of WithPageBatchSize pages with a
// cancellation check between batches. Each non-empty page is followed by a
// blank line, so page boundaries become paragraph boundaries for the
// chunker. Only the first WithMaxPages pages are read.
//
// Pages that fail to extract are recorded in ParseResult.Errors and skipped;
// a document is only rejected when it cannot be opened at all.
//
// # Metadata
//
// Title, author, subject, creator, producer and the creation and
// modification dates come from the trailer's Info dictionary. The page count
// always covers the whole document, and DocumentHash is the SHA-256 of the
// raw bytes, used to recognise re-uploads of identical files.
package parser
