package index

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/claimsight/claimsight/chunker"
)

// Postgres stores chunk embeddings in a pgvector table. Unlike Flat it has
// native row deletion and filtered search, but it exposes the same
// observable contract: descending-similarity results and immediate,
// complete document deletion.
type Postgres struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, dimension int, logger *log.Logger) *Postgres {
	if logger == nil {
		logger = log.Default()
	}
	return &Postgres{pool: pool, dimension: dimension, logger: logger}
}

func (p *Postgres) Add(ctx context.Context, vectors [][]float32, chunks []chunker.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", ErrDimensionMismatch, len(vectors), len(chunks))
	}
	for i, vec := range vectors {
		if len(vec) != p.dimension {
			return fmt.Errorf("%w: vector %d has width %d, index dimension is %d", ErrDimensionMismatch, i, len(vec), p.dimension)
		}
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for i, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO claim_chunks (chunk_id, doc_id, doc_type, filename, page_number, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, chunk.ChunkID, chunk.DocID, chunk.DocType, chunk.Filename, chunk.PageNumber, chunk.ChunkIndex, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	p.logger.Printf("added %d chunks to pgvector index", len(chunks))
	return nil
}

func (p *Postgres) Search(ctx context.Context, query []float32, topK int, docIDs []string) ([]Match, error) {
	if len(query) != p.dimension {
		return nil, fmt.Errorf("%w: query has width %d, index dimension is %d", ErrDimensionMismatch, len(query), p.dimension)
	}
	if topK <= 0 {
		return []Match{}, nil
	}

	sql := `
		SELECT chunk_id, doc_id, doc_type, filename, page_number, chunk_index, content,
		       (embedding <-> $1::vector) AS distance
		FROM claim_chunks`
	args := []any{pgvector.NewVector(query)}
	if len(docIDs) > 0 {
		sql += " WHERE doc_id = ANY($2)"
		args = append(args, docIDs)
	}
	sql += fmt.Sprintf(" ORDER BY embedding <-> $1::vector LIMIT %d", topK)

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Match, 0, topK)
	for rows.Next() {
		var chunk chunker.Chunk
		var distance float64
		if err := rows.Scan(&chunk.ChunkID, &chunk.DocID, &chunk.DocType, &chunk.Filename, &chunk.PageNumber, &chunk.ChunkIndex, &chunk.Text, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		results = append(results, Match{Chunk: chunk, Similarity: 1 / (1 + distance)})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (p *Postgres) DeleteDocument(ctx context.Context, docID string) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM claim_chunks WHERE doc_id = $1", docID)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	if tag.RowsAffected() == 0 {
		p.logger.Printf("no chunks found for doc_id %s", docID)
		return nil
	}
	p.logger.Printf("deleted %d chunks for doc_id %s", tag.RowsAffected(), docID)
	return nil
}

func (p *Postgres) ChunksByDoc(ctx context.Context, docID string) ([]chunker.Chunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT chunk_id, doc_id, doc_type, filename, page_number, chunk_index, content
		FROM claim_chunks
		WHERE doc_id = $1
		ORDER BY chunk_index
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("query document chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]chunker.Chunk, 0)
	for rows.Next() {
		var chunk chunker.Chunk
		if err := rows.Scan(&chunk.ChunkID, &chunk.DocID, &chunk.DocType, &chunk.Filename, &chunk.PageNumber, &chunk.ChunkIndex, &chunk.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return chunks, nil
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{EmbeddingDim: p.dimension}

	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*), COUNT(DISTINCT doc_id) FROM claim_chunks").Scan(&stats.TotalChunks, &stats.TotalDocuments); err != nil {
		return Stats{}, fmt.Errorf("query chunk counts: %w", err)
	}
	if err := p.pool.QueryRow(ctx, "SELECT pg_total_relation_size('claim_chunks')").Scan(&stats.IndexSizeBytes); err != nil {
		return Stats{}, fmt.Errorf("query relation size: %w", err)
	}

	return stats, nil
}

// Save is a no-op: Postgres rows are durable on commit.
func (p *Postgres) Save(context.Context) error {
	return nil
}

var _ Store = (*Postgres)(nil)
