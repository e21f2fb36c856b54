// Package embedder generates vector embeddings for document chunks.
//
// Three providers implement Embedder: Jina AI and OpenAI call remote APIs with
// retry and backoff, while the local provider hashes word features into a
// 384-dimension vector and needs no network.
//
// # Provider Selection
//
// NewFromEnv picks a provider from the environment:
//
//  1. PDFRAG_EMBEDDING_PROVIDER, when set
//  2. jina, when JINA_API_KEY is set
//  3. openai, when OPENAI_API_KEY is set
//  4. local otherwise
//
// # Caching
//
// Providers share an LRU Cache keyed by the SHA-256 of the chunk text, so
// re-ingesting an unchanged document only embeds new chunks.
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 1000})
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
package embedder
