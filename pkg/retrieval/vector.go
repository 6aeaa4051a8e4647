package retrieval

import (
	"context"
	"fmt"

	"github.com/quillkb/quill/backend/pkg/store"
)

// searchVector embeds the query and runs a similarity search against
// the chunk index.
func (r *Retriever) searchVector(ctx context.Context, query, scope string) ([]store.ChunkHit, error) {
	embedding, err := r.aiClient.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	hits, err := r.vectorIndex.Search(ctx, embedding, r.vectorTopK, scope)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return hits, nil
}
