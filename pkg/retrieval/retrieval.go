// Package retrieval answers queries over the indexed corpus through
// two channels: nearest-neighbor search over chunk embeddings and
// entity/subgraph search over the knowledge graph. Both channels run
// concurrently per query; their hits are normalized, weighted, merged
// and deduplicated into a single ranked evidence list. An optional
// rerank pass may reorder the top results but never fails a request.
package retrieval

import (
	"fmt"

	"github.com/quillkb/quill/backend/pkg/ai"
	"github.com/quillkb/quill/backend/pkg/store"
)

const (
	defaultVectorTopK = 12
	defaultGraphTopK  = 8
	defaultFinalTopK  = 4
	defaultGraphHops  = 2

	defaultAlpha = 0.7
	defaultBeta  = 0.3
)

// Retriever runs dual-channel retrieval. It is safe for concurrent
// use.
//
// A Retriever should be created using NewRetriever.
type Retriever struct {
	aiClient    ai.KGAIClient
	graphStore  store.GraphStorage
	vectorIndex store.VectorIndex
	merger      *Merger

	vectorTopK  int
	graphTopK   int
	finalTopK   int
	graphHops   int
	relTypes    []string
	useReranker bool
}

// NewRetrieverParams configures a Retriever. VectorTopK and GraphTopK
// size the per-channel candidate sets, FinalTopK the merged result.
// Alpha weights the vector channel and Beta the graph channel; they
// are normalized to sum to one. RelTypes optionally restricts graph
// traversal to a subset of relation types.
type NewRetrieverParams struct {
	AIClient    ai.KGAIClient
	GraphStore  store.GraphStorage
	VectorIndex store.VectorIndex

	VectorTopK  int
	GraphTopK   int
	FinalTopK   int
	GraphHops   int
	Alpha       float64
	Beta        float64
	RelTypes    []string
	UseReranker bool
}

// NewRetriever creates a Retriever, filling unset parameters with
// defaults.
func NewRetriever(params NewRetrieverParams) (*Retriever, error) {
	if params.AIClient == nil {
		return nil, fmt.Errorf("retrieval: ai client is required")
	}
	if params.GraphStore == nil && params.VectorIndex == nil {
		return nil, fmt.Errorf("retrieval: at least one of graph store and vector index is required")
	}

	vectorTopK := params.VectorTopK
	if vectorTopK <= 0 {
		vectorTopK = defaultVectorTopK
	}
	graphTopK := params.GraphTopK
	if graphTopK <= 0 {
		graphTopK = defaultGraphTopK
	}
	finalTopK := params.FinalTopK
	if finalTopK <= 0 {
		finalTopK = defaultFinalTopK
	}
	graphHops := params.GraphHops
	if graphHops <= 0 {
		graphHops = defaultGraphHops
	}
	alpha := params.Alpha
	beta := params.Beta
	if alpha <= 0 && beta <= 0 {
		alpha, beta = defaultAlpha, defaultBeta
	}

	return &Retriever{
		aiClient:    params.AIClient,
		graphStore:  params.GraphStore,
		vectorIndex: params.VectorIndex,
		merger:      NewMerger(alpha, beta),
		vectorTopK:  vectorTopK,
		graphTopK:   graphTopK,
		finalTopK:   finalTopK,
		graphHops:   graphHops,
		relTypes:    params.RelTypes,
		useReranker: params.UseReranker,
	}, nil
}
