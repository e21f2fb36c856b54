// Package chunker splits extracted document text into overlapping,
// size-bounded chunks for embedding and search.
//
// # Basic Usage
//
//	s, err := chunker.New(chunker.MethodIncremental, chunker.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i, chunk := range s.Split(text) {
//	    fmt.Printf("chunk %d: %d chars\n", i, utf8.RuneCountInString(chunk))
//	}
//
// # Strategies
//
// Recursive splits on the coarsest separator present in the text
// (paragraphs, lines, sentences, clauses, words), packs the pieces into
// chunks, and re-splits any chunk that is still too large with the next
// separator down. When no separator is left it slices by characters.
//
// Incremental is the default for whole documents. It walks paragraphs,
// sub-splits them in batches of about BatchSize characters with the
// recursive splitter, and stops admitting paragraphs once Deadline has
// elapsed. The deadline is checked between paragraphs only; a batch that is
// already being split runs to completion.
//
// # Overlap
//
// ChunkOverlap has two meanings. When pieces are packed into chunks it is a
// piece count: a new chunk starts with the last ChunkOverlap pieces of the
// previous one. When slicing by characters it is a character count. A
// retained piece longer than ChunkSize produces an oversized chunk.
//
// # Failure Handling
//
// Split never returns an error and never panics. The incremental splitter
// tries, in order:
//
//  1. batched splitting (a failing batch contributes zero chunks)
//  2. fixed-width slicing of the first 1,000,000 characters
//  3. a single chunk holding the first 10,000 characters
//
// Non-empty input always yields at least one chunk. Empty input yields none.
//
// # Progress Events
//
// Splitting code does not log. Pass WithObserver to receive Event values
// for batches, deadline cutoffs and fallbacks:
//
//	s, _ := chunker.NewIncremental(cfg, chunker.WithObserver(func(e chunker.Event) {
//	    logger.Debug("chunking", "event", e.Kind, "batch", e.Batch)
//	}))
package chunker
