package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalDimension is the vector size of the local provider
const LocalDimension = 384

// LocalProvider embeds text offline by hashing word unigrams and bigrams into
// a fixed-size vector. Texts sharing vocabulary land close together, which is
// enough for keyword-like retrieval without an external model.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-hashing-v1",
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return firstEmbedding(ctx, l, req)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := embedWithCache(ctx, l.cache, req, l.model, func(ctx context.Context, texts []string, _ string) ([]*Embedding, error) {
		out := make([]*Embedding, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = &Embedding{
				Vector:    hashVector(text),
				Dimension: LocalDimension,
				Provider:  ProviderLocal,
				Model:     l.model,
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector builds a unit-length feature-hashed vector of text
func hashVector(text string) []float32 {
	vec := make([]float32, LocalDimension)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	add := func(feature string, weight float32) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % LocalDimension)
		// The top bit picks the sign, spreading collisions around zero
		if sum>>63 == 1 {
			weight = -weight
		}
		vec[idx] += weight
	}

	for i, w := range words {
		add(w, 1)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}

	return NormalizeVector(vec)
}
