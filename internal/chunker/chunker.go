package chunker

import (
	"fmt"
	"strconv"

	"github.com/dshills/pdfrag-mcp/pkg/types"
)

// Splitter turns text into an ordered sequence of chunks.
// Implementations are immutable and safe for concurrent use.
type Splitter interface {
	Split(text string) []string
}

// New returns the splitter for method
func New(method Method, cfg Config, opts ...Option) (Splitter, error) {
	switch method {
	case MethodIncremental:
		return NewIncremental(cfg, opts...)
	case MethodRecursive:
		return NewRecursive(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// Chunker pairs splitter output with the per-chunk metadata stored during ingestion
type Chunker struct {
	splitter Splitter
	tokens   LengthFunc
}

// NewChunker wraps a splitter. tokens counts chunk tokens; nil uses the
// chars/4 estimate.
func NewChunker(splitter Splitter, tokens LengthFunc) *Chunker {
	return &Chunker{splitter: splitter, tokens: tokens}
}

// ChunkText splits text and builds chunks carrying base metadata plus
// chunk_index and total_chunks.
func (c *Chunker) ChunkText(text string, base map[string]string) []*types.Chunk {
	parts := c.splitter.Split(text)
	chunks := make([]*types.Chunk, 0, len(parts))

	for i, part := range parts {
		meta := make(map[string]string, len(base)+2)
		for k, v := range base {
			meta[k] = v
		}
		meta["chunk_index"] = strconv.Itoa(i)
		meta["total_chunks"] = strconv.Itoa(len(parts))

		chunk := &types.Chunk{
			Index:    i,
			Total:    len(parts),
			Content:  part,
			Metadata: meta,
		}
		chunk.ComputeContentHash()
		chunk.ComputeTokenCount(c.tokens)
		chunks = append(chunks, chunk)
	}

	return chunks
}
