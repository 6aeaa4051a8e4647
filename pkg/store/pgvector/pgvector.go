// Package pgvector indexes embedded chunks in PostgreSQL for
// nearest-neighbor retrieval.
package pgvector

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/quillkb/quill/backend/internal/util"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Index stores chunk embeddings in the chunks table. The embedding
// dimension is fixed by the schema; a configured dimension that does
// not match is an initialization error, not a per-query one.
type Index struct {
	conn      pgxIConn
	dimension int
}

// NewIndex validates the configured dimension against the chunks
// table schema and returns the index.
func NewIndex(ctx context.Context, conn pgxIConn, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("pgvector: dimension must be positive, got %d", dimension)
	}

	var schemaDim int
	err := conn.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'
	`).Scan(&schemaDim)
	if err != nil {
		return nil, fmt.Errorf("pgvector: read embedding dimension: %w", err)
	}
	if schemaDim > 0 && schemaDim != dimension {
		return nil, fmt.Errorf("pgvector: configured dimension %d does not match schema dimension %d", dimension, schemaDim)
	}

	return &Index{conn: conn, dimension: dimension}, nil
}

// UpsertChunks writes chunks and their embeddings, replacing prior
// content under the same chunk id. Returns the number written.
func (idx *Index) UpsertChunks(ctx context.Context, chunks []common.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("pgvector: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	for i, vec := range vectors {
		if len(vec) != idx.dimension {
			return 0, fmt.Errorf("pgvector: vector %d has dimension %d, expected %d", i, len(vec), idx.dimension)
		}
	}

	tx, err := idx.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	written := 0
	for i, chunk := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, doc_id, scope, chunk_index, content, token_count, start_char, end_char, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				doc_id = EXCLUDED.doc_id,
				scope = EXCLUDED.scope,
				chunk_index = EXCLUDED.chunk_index,
				content = EXCLUDED.content,
				token_count = EXCLUDED.token_count,
				start_char = EXCLUDED.start_char,
				end_char = EXCLUDED.end_char,
				embedding = EXCLUDED.embedding,
				updated_at = now()
		`,
			chunk.ID,
			chunk.DocID,
			chunk.Scope,
			chunk.Index,
			util.SanitizePostgresText(chunk.Content),
			chunk.TokenCount,
			chunk.StartChar,
			chunk.EndChar,
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			logger.Error("chunk upsert failed", "chunk_id", chunk.ID, "err", err)
			return written, err
		}
		written++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return written, nil
}

// Search returns the topK nearest chunks by cosine similarity, scored
// as 1 - distance so higher is closer. Scope narrows the candidate
// set when non-empty.
func (idx *Index) Search(ctx context.Context, vector []float32, topK int, scope string) ([]store.ChunkHit, error) {
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("pgvector: query vector has dimension %d, expected %d", len(vector), idx.dimension)
	}
	if topK <= 0 {
		topK = 10
	}

	query := `
		SELECT id, doc_id, scope, chunk_index, content, token_count, start_char, end_char,
		       1 - (embedding <=> $1) AS score
		FROM chunks
	`
	args := []any{pgvector.NewVector(vector)}
	if scope != "" {
		query += ` WHERE scope = $3`
		args = append(args, topK, scope)
	} else {
		args = append(args, topK)
	}
	query += ` ORDER BY embedding <=> $1 LIMIT $2`

	rows, err := idx.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	var hits []store.ChunkHit
	for rows.Next() {
		var hit store.ChunkHit
		err := rows.Scan(
			&hit.Chunk.ID,
			&hit.Chunk.DocID,
			&hit.Chunk.Scope,
			&hit.Chunk.Index,
			&hit.Chunk.Content,
			&hit.Chunk.TokenCount,
			&hit.Chunk.StartChar,
			&hit.Chunk.EndChar,
			&hit.Score,
		)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// DeleteByDoc removes all chunks of a document and returns the count.
func (idx *Index) DeleteByDoc(ctx context.Context, docID string) (int, error) {
	tag, err := idx.conn.Exec(ctx, `DELETE FROM chunks WHERE doc_id = $1`, docID)
	if err != nil {
		return 0, fmt.Errorf("pgvector: delete chunks for doc %q: %w", docID, err)
	}
	return int(tag.RowsAffected()), nil
}
