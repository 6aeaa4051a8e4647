package store

import (
	"context"

	"github.com/quillkb/quill/backend/pkg/common"
)

// WriteStats reports the outcome of a batched write. Individual
// node/edge failures are counted here instead of aborting the batch.
type WriteStats struct {
	NodesWritten int `json:"nodes_written"`
	EdgesWritten int `json:"edges_written"`
	Errors       int `json:"errors"`
}

func (s *WriteStats) Add(other WriteStats) {
	s.NodesWritten += other.NodesWritten
	s.EdgesWritten += other.EdgesWritten
	s.Errors += other.Errors
}

// EntityHit is a ranked entity match from the graph store.
type EntityHit struct {
	Node  common.Node `json:"node"`
	Score float64     `json:"score"`
}

// GraphPath is a traversal result. Score carries the store-side path
// score; consumers apply their own length normalization.
type GraphPath struct {
	Nodes []common.Node `json:"nodes"`
	Edges []common.Edge `json:"edges"`
	Score float64       `json:"score"`
}

// Length returns the number of edges in the path.
func (p GraphPath) Length() int {
	return len(p.Edges)
}

// ChunkHit is a nearest-neighbor match from the vector index.
type ChunkHit struct {
	Chunk common.Chunk `json:"chunk"`
	Score float64      `json:"score"`
}

// ChunkMention links a chunk to an entity it mentions, weighted by
// how confident the match is.
type ChunkMention struct {
	EntityID   string  `json:"entity_id"`
	Confidence float64 `json:"confidence"`
}

// GraphStorage persists and queries scope-partitioned knowledge
// graphs. Upserts merge by deterministic key and preserve created_at
// on first insert. Nodes are never deleted by scope; re-indexing a
// scope deletes its edges and rewrites them.
type GraphStorage interface {
	UpsertNodes(ctx context.Context, nodes []common.Node) (WriteStats, error)
	UpsertEdges(ctx context.Context, edges []common.Edge) (WriteStats, error)
	DeleteEdgesByScope(ctx context.Context, scope string) (int, error)

	LinkChunkMentions(ctx context.Context, chunk common.Chunk, mentions []ChunkMention) error
	DeleteChunksByDoc(ctx context.Context, docID string) (int, error)

	FetchScopeGraph(ctx context.Context, scope string) (common.Graph, error)
	SearchEntities(ctx context.Context, query string, types []string, scope string, limit int) ([]EntityHit, error)
	Neighborhood(ctx context.Context, entityID string, hops int, relTypes []string, scope string, limit int) ([]GraphPath, error)
	ShortestPath(ctx context.Context, startID, endID string, maxHops int, relTypes []string) (*GraphPath, error)
	Stats(ctx context.Context, scope string) (common.GraphStats, error)

	Close(ctx context.Context) error
}

// VectorIndex stores embedded chunks and answers similarity queries.
// Dimension is fixed at startup; a mismatch is a configuration error.
type VectorIndex interface {
	UpsertChunks(ctx context.Context, chunks []common.Chunk, vectors [][]float32) (int, error)
	Search(ctx context.Context, vector []float32, topK int, scope string) ([]ChunkHit, error)
	DeleteByDoc(ctx context.Context, docID string) (int, error)
}
