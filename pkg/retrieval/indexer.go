package retrieval

import (
	"context"
	"fmt"

	"github.com/quillkb/quill/backend/pkg/chunk"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"
)

// Indexer splits documents into chunks, embeds them and writes them to
// the vector index. With a graph store attached it also links each
// chunk to the scope's entities it mentions.
type Indexer struct {
	aiClient    embeddingClient
	vectorIndex store.VectorIndex
	graphStore  store.GraphStorage
	chunker     *chunk.Chunker
	batchSize   int
}

type embeddingClient interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

// NewIndexerParams configures an Indexer. ChunkSize and ChunkOverlap
// are measured in runes; BatchSize bounds how many chunks are embedded
// per request. GraphStore is optional; when present, indexing a scoped
// document links its chunks to the scope graph's entities.
type NewIndexerParams struct {
	AIClient    embeddingClient
	VectorIndex store.VectorIndex
	GraphStore  store.GraphStorage

	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// IndexStats reports the outcome of indexing one document.
type IndexStats struct {
	ChunksIndexed  int `json:"chunks_indexed"`
	TokensTotal    int `json:"tokens_total"`
	MentionsLinked int `json:"mentions_linked"`
}

// NewIndexer creates an Indexer, filling unset parameters with
// defaults.
func NewIndexer(params NewIndexerParams) (*Indexer, error) {
	if params.AIClient == nil {
		return nil, fmt.Errorf("indexer: ai client is required")
	}
	if params.VectorIndex == nil {
		return nil, fmt.Errorf("indexer: vector index is required")
	}

	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultChunkSize
	}
	overlap := params.ChunkOverlap
	if overlap < 0 {
		overlap = chunk.DefaultChunkOverlap
	}
	chunker, err := chunk.NewChunker(chunkSize, overlap)
	if err != nil {
		return nil, err
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	return &Indexer{
		aiClient:    params.AIClient,
		vectorIndex: params.VectorIndex,
		graphStore:  params.GraphStore,
		chunker:     chunker,
		batchSize:   batchSize,
	}, nil
}

// IndexDocument chunks the text, embeds the chunks in batches and
// upserts them. Re-indexing the same document id overwrites the prior
// chunks whose ids match and deletes nothing else; callers that need a
// clean slate use DeleteDocument first.
func (ix *Indexer) IndexDocument(ctx context.Context, docID, scope, text string) (IndexStats, error) {
	if docID == "" {
		return IndexStats{}, fmt.Errorf("indexer: doc id is empty")
	}

	chunks := ix.chunker.Chunk(text, docID, scope)
	if len(chunks) == 0 {
		return IndexStats{}, fmt.Errorf("indexer: document %s produced no chunks", docID)
	}

	stats := IndexStats{}
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		inputs := make([][]byte, len(batch))
		for i, c := range batch {
			inputs[i] = []byte(c.Content)
			stats.TokensTotal += c.TokenCount
		}
		vectors, err := ix.aiClient.GenerateEmbeddings(ctx, inputs)
		if err != nil {
			return stats, fmt.Errorf("embedding chunks %d-%d of %s: %w", start, end-1, docID, err)
		}

		written, err := ix.vectorIndex.UpsertChunks(ctx, batch, vectors)
		if err != nil {
			return stats, fmt.Errorf("storing chunks %d-%d of %s: %w", start, end-1, docID, err)
		}
		stats.ChunksIndexed += written
	}

	if ix.graphStore != nil && scope != "" {
		linked, err := ix.linkMentions(ctx, scope, chunks)
		if err != nil {
			logger.Warn("chunk mention linking failed",
				"doc_id", docID, "scope", scope, "err", err)
		}
		stats.MentionsLinked = linked
	}

	logger.Info("indexed document",
		"doc_id", docID,
		"scope", scope,
		"chunks", stats.ChunksIndexed,
		"tokens", stats.TokensTotal,
		"mentions", stats.MentionsLinked,
	)
	return stats, nil
}

// DeleteDocument removes every indexed chunk of one document, from the
// vector index and from the graph's chunk layer when one is attached.
func (ix *Indexer) DeleteDocument(ctx context.Context, docID string) (int, error) {
	if docID == "" {
		return 0, fmt.Errorf("indexer: doc id is empty")
	}
	deleted, err := ix.vectorIndex.DeleteByDoc(ctx, docID)
	if err != nil {
		return deleted, err
	}
	if ix.graphStore != nil {
		if _, err := ix.graphStore.DeleteChunksByDoc(ctx, docID); err != nil {
			logger.Warn("graph chunk cleanup failed", "doc_id", docID, "err", err)
		}
	}
	return deleted, nil
}
