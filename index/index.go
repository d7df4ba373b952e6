// Package index stores chunk embeddings alongside their metadata and
// answers nearest-neighbour queries over them.
package index

import (
	"context"
	"errors"

	"github.com/claimsight/claimsight/chunker"
)

// ErrDimensionMismatch reports an Add whose vectors do not line up with the
// chunks or the index dimension. The index is left unchanged.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Match pairs a stored chunk with its similarity to the query, derived from
// distance as 1/(1+d) so it stays in (0,1] and decreases with distance.
type Match struct {
	Chunk      chunker.Chunk
	Similarity float64
}

// Stats summarises index contents.
type Stats struct {
	TotalChunks    int   `json:"total_chunks"`
	TotalDocuments int   `json:"total_documents"`
	EmbeddingDim   int   `json:"embedding_dim"`
	IndexSizeBytes int64 `json:"index_size_bytes"`
}

// Store is the vector index contract shared by the flat in-process index
// and the Postgres backend. A substitute backend must keep search results
// ordered by descending similarity and must make document deletion fully
// observable as soon as the call returns.
type Store interface {
	// Add appends one row per chunk; vectors[i] belongs to chunks[i].
	Add(ctx context.Context, vectors [][]float32, chunks []chunker.Chunk) error
	// Search returns at most topK matches ordered by descending
	// similarity, optionally restricted to the given document ids. An
	// empty index yields an empty slice, never an error.
	Search(ctx context.Context, query []float32, topK int, docIDs []string) ([]Match, error)
	// DeleteDocument removes every chunk of the document.
	DeleteDocument(ctx context.Context, docID string) error
	// ChunksByDoc lists a document's chunks in insertion order.
	ChunksByDoc(ctx context.Context, docID string) ([]chunker.Chunk, error)
	Stats(ctx context.Context) (Stats, error)
	// Save persists the index. Backends with durable storage may treat
	// this as a no-op.
	Save(ctx context.Context) error
}
