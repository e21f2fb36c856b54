// Package searcher implements hybrid document search combining vector
// similarity and keyword matching.
//
// The searcher provides three search modes:
//   - Hybrid: vector + BM25 keyword search fused with Reciprocal Rank Fusion (default)
//   - Vector: cosine similarity over chunk embeddings
//   - Keyword: BM25 full-text search only
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:   "termination notice period",
//	    Limit:   5,
//	    Filters: &storage.SearchFilters{DocumentID: "contract-42"},
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s v%s #%d (%.3f)\n",
//	        r.Rank, r.Document.Title, r.Document.Version, r.ChunkIndex, r.RelevanceScore)
//	}
//
// # Caching
//
// With UseCache set, responses are kept in an LRU cache keyed by query, mode,
// limit and filters until CacheTTL elapses. InvalidateCache clears it after
// new documents are ingested.
package searcher
