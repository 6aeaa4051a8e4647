package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"
)

// RetrieveParams are the per-query knobs. TopK overrides the
// retriever's final result size when positive. Scope restricts both
// channels to one section or book graph; empty means corpus-wide.
// IncludeGraph gates the graph channel for callers that want plain
// vector retrieval.
type RetrieveParams struct {
	Query        string
	TopK         int
	Scope        string
	IncludeGraph bool
}

// RetrievalResult is the merged evidence list plus per-channel
// accounting for the query.
type RetrievalResult struct {
	Query    string            `json:"query"`
	Evidence []common.Evidence `json:"evidence"`
	Metadata RetrievalMetadata `json:"metadata"`
}

// RetrievalMetadata reports how each channel contributed to the final
// evidence list.
type RetrievalMetadata struct {
	VectorHits   int      `json:"vector_hits"`
	GraphHits    int      `json:"graph_hits"`
	MergedCount  int      `json:"merged_count"`
	Channels     []string `json:"channels"`
	RerankerUsed bool     `json:"reranker_used"`
	Alpha        float64  `json:"alpha"`
	Beta         float64  `json:"beta"`
}

// Retrieve runs both channels concurrently, merges their hits and
// returns the top evidence. A single failed channel is tolerated and
// logged; the request only fails when no channel produced a result.
func (r *Retriever) Retrieve(ctx context.Context, params RetrieveParams) (RetrievalResult, error) {
	if params.Query == "" {
		return RetrievalResult{}, fmt.Errorf("retrieval: query is empty")
	}
	topK := params.TopK
	if topK <= 0 {
		topK = r.finalTopK
	}

	var (
		vectorHits []store.ChunkHit
		graphHits  []GraphHit
		vectorErr  error
		graphErr   error
	)

	runVector := r.vectorIndex != nil
	runGraph := r.graphStore != nil && params.IncludeGraph

	g, gCtx := errgroup.WithContext(ctx)
	if runVector {
		g.Go(func() error {
			vectorHits, vectorErr = r.searchVector(gCtx, params.Query, params.Scope)
			return nil
		})
	}
	if runGraph {
		g.Go(func() error {
			graphHits, graphErr = r.searchGraph(gCtx, params.Query, params.Scope)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RetrievalResult{}, err
	}

	if vectorErr != nil {
		logger.Warn("vector channel failed", "query", params.Query, "error", vectorErr)
		vectorHits = nil
	}
	if graphErr != nil {
		logger.Warn("graph channel failed", "query", params.Query, "error", graphErr)
		graphHits = nil
	}
	if runVector && vectorErr != nil && (!runGraph || graphErr != nil) {
		return RetrievalResult{}, fmt.Errorf("retrieval: all channels failed: %w", vectorErr)
	}
	if runGraph && graphErr != nil && !runVector {
		return RetrievalResult{}, fmt.Errorf("retrieval: all channels failed: %w", graphErr)
	}

	// Merge with headroom so the reranker sees more than it keeps.
	evidence := r.merger.Merge(vectorHits, graphHits, topK*2)

	rerankerUsed := false
	if r.useReranker && r.aiClient != nil {
		evidence = r.rerank(ctx, params.Query, evidence)
		rerankerUsed = true
	}
	if len(evidence) > topK {
		evidence = evidence[:topK]
	}

	channels := make([]string, 0, 2)
	if runVector && vectorErr == nil {
		channels = append(channels, "vector")
	}
	if runGraph && graphErr == nil {
		channels = append(channels, "graph")
	}

	return RetrievalResult{
		Query:    params.Query,
		Evidence: evidence,
		Metadata: RetrievalMetadata{
			VectorHits:   len(vectorHits),
			GraphHits:    len(graphHits),
			MergedCount:  len(evidence),
			Channels:     channels,
			RerankerUsed: rerankerUsed,
			Alpha:        r.merger.Alpha(),
			Beta:         r.merger.Beta(),
		},
	}, nil
}
