package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/quillkb/quill/backend/pkg/ai"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/store"
)

type fakeAI struct {
	embed  func(input []byte) ([]float32, error)
	format func(name, prompt string, out any) error
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	if f.format == nil {
		return fmt.Errorf("no structured output configured")
	}
	return f.format(name, prompt, out)
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if f.embed == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.embed(input)
}

func (f *fakeAI) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		vec, err := f.GenerateEmbedding(ctx, input)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeAI) ResetMetrics() {}

func (f *fakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type fakeVectorIndex struct {
	hits     []store.ChunkHit
	err      error
	upserted int
}

func (f *fakeVectorIndex) UpsertChunks(ctx context.Context, chunks []common.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunk/vector count mismatch")
	}
	f.upserted += len(chunks)
	return len(chunks), nil
}

func (f *fakeVectorIndex) Search(ctx context.Context, vector []float32, topK int, scope string) ([]store.ChunkHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.hits) {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeVectorIndex) DeleteByDoc(ctx context.Context, docID string) (int, error) {
	return 0, nil
}

type fakeGraphStorage struct {
	entities  []store.EntityHit
	paths     []store.GraphPath
	shortest  *store.GraphPath
	searchErr error

	scopeGraph common.Graph
	mentions   map[string][]store.ChunkMention
	deleted    []string
}

func (f *fakeGraphStorage) UpsertNodes(ctx context.Context, nodes []common.Node) (store.WriteStats, error) {
	return store.WriteStats{}, nil
}

func (f *fakeGraphStorage) UpsertEdges(ctx context.Context, edges []common.Edge) (store.WriteStats, error) {
	return store.WriteStats{}, nil
}

func (f *fakeGraphStorage) DeleteEdgesByScope(ctx context.Context, scope string) (int, error) {
	return 0, nil
}

func (f *fakeGraphStorage) FetchScopeGraph(ctx context.Context, scope string) (common.Graph, error) {
	return f.scopeGraph, nil
}

func (f *fakeGraphStorage) LinkChunkMentions(ctx context.Context, chunk common.Chunk, mentions []store.ChunkMention) error {
	if f.mentions == nil {
		f.mentions = make(map[string][]store.ChunkMention)
	}
	f.mentions[chunk.ID] = mentions
	return nil
}

func (f *fakeGraphStorage) DeleteChunksByDoc(ctx context.Context, docID string) (int, error) {
	f.deleted = append(f.deleted, docID)
	return 0, nil
}

func (f *fakeGraphStorage) SearchEntities(ctx context.Context, query string, types []string, scope string, limit int) ([]store.EntityHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit < len(f.entities) {
		return f.entities[:limit], nil
	}
	return f.entities, nil
}

func (f *fakeGraphStorage) Neighborhood(ctx context.Context, entityID string, hops int, relTypes []string, scope string, limit int) ([]store.GraphPath, error) {
	return f.paths, nil
}

func (f *fakeGraphStorage) ShortestPath(ctx context.Context, startID, endID string, maxHops int, relTypes []string) (*store.GraphPath, error) {
	return f.shortest, nil
}

func (f *fakeGraphStorage) Stats(ctx context.Context, scope string) (common.GraphStats, error) {
	return common.GraphStats{}, nil
}

func (f *fakeGraphStorage) Close(ctx context.Context) error { return nil }

func testNode(id, name, typ string) common.Node {
	return common.Node{ID: id, Name: name, Type: typ, Description: "about " + name}
}

func newTestRetriever(t *testing.T, params NewRetrieverParams) *Retriever {
	t.Helper()
	r, err := NewRetriever(params)
	if err != nil {
		t.Fatalf("NewRetriever() error: %v", err)
	}
	return r
}

func TestRetrieveVectorOnly(t *testing.T) {
	vectorIndex := &fakeVectorIndex{hits: []store.ChunkHit{
		{Chunk: common.Chunk{ID: "c1", Content: "supply and demand basics"}, Score: 0.9},
		{Chunk: common.Chunk{ID: "c2", Content: "elasticity of demand notes"}, Score: 0.6},
	}}
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:    &fakeAI{},
		VectorIndex: vectorIndex,
	})

	got, err := r.Retrieve(context.Background(), RetrieveParams{Query: "what sets price", TopK: 4})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got.Evidence) != 2 {
		t.Fatalf("Retrieve() returned %d evidence, want 2", len(got.Evidence))
	}
	if got.Metadata.VectorHits != 2 || got.Metadata.GraphHits != 0 {
		t.Errorf("channel counts = (%d, %d), want (2, 0)", got.Metadata.VectorHits, got.Metadata.GraphHits)
	}
	if len(got.Metadata.Channels) != 1 || got.Metadata.Channels[0] != "vector" {
		t.Errorf("Channels = %v, want [vector]", got.Metadata.Channels)
	}
	if got.Metadata.RerankerUsed {
		t.Errorf("RerankerUsed = true, want false")
	}
}

func TestRetrieveDualChannel(t *testing.T) {
	vectorIndex := &fakeVectorIndex{hits: []store.ChunkHit{
		{Chunk: common.Chunk{ID: "c1", Content: "supply and demand basics"}, Score: 0.9},
	}}
	graphStore := &fakeGraphStorage{
		entities: []store.EntityHit{
			{Node: testNode("supply-curve", "Supply Curve", "concept"), Score: 1.0},
		},
	}
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:    &fakeAI{},
		VectorIndex: vectorIndex,
		GraphStore:  graphStore,
	})

	got, err := r.Retrieve(context.Background(), RetrieveParams{
		Query:        "supply curve",
		TopK:         4,
		IncludeGraph: true,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if got.Metadata.VectorHits != 1 || got.Metadata.GraphHits != 1 {
		t.Fatalf("channel counts = (%d, %d), want (1, 1)", got.Metadata.VectorHits, got.Metadata.GraphHits)
	}
	if len(got.Metadata.Channels) != 2 {
		t.Errorf("Channels = %v, want both", got.Metadata.Channels)
	}

	types := map[string]bool{}
	for _, ev := range got.Evidence {
		types[ev.Type] = true
	}
	if !types["vector"] || !types["graph"] {
		t.Errorf("evidence types = %v, want both vector and graph", types)
	}
}

func TestRetrieveToleratesOneFailedChannel(t *testing.T) {
	vectorIndex := &fakeVectorIndex{err: fmt.Errorf("pg down")}
	graphStore := &fakeGraphStorage{
		entities: []store.EntityHit{
			{Node: testNode("supply-curve", "Supply Curve", "concept"), Score: 1.0},
		},
	}
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:    &fakeAI{},
		VectorIndex: vectorIndex,
		GraphStore:  graphStore,
	})

	got, err := r.Retrieve(context.Background(), RetrieveParams{
		Query:        "supply curve",
		IncludeGraph: true,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v, want degraded success", err)
	}
	if got.Metadata.VectorHits != 0 {
		t.Errorf("VectorHits = %d, want 0 after channel failure", got.Metadata.VectorHits)
	}
	if len(got.Metadata.Channels) != 1 || got.Metadata.Channels[0] != "graph" {
		t.Errorf("Channels = %v, want [graph]", got.Metadata.Channels)
	}
	if len(got.Evidence) == 0 {
		t.Errorf("Evidence empty, want graph channel results")
	}
}

func TestRetrieveFailsWhenAllChannelsFail(t *testing.T) {
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:    &fakeAI{},
		VectorIndex: &fakeVectorIndex{err: fmt.Errorf("pg down")},
		GraphStore:  &fakeGraphStorage{searchErr: fmt.Errorf("neo4j down")},
	})

	_, err := r.Retrieve(context.Background(), RetrieveParams{
		Query:        "anything",
		IncludeGraph: true,
	})
	if err == nil {
		t.Fatalf("Retrieve() succeeded, want error when every channel fails")
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:    &fakeAI{},
		VectorIndex: &fakeVectorIndex{},
	})
	if _, err := r.Retrieve(context.Background(), RetrieveParams{Query: ""}); err == nil {
		t.Fatalf("Retrieve() with empty query succeeded, want error")
	}
}

func TestRetrieveRerankReorders(t *testing.T) {
	aiClient := &fakeAI{
		format: func(name, prompt string, out any) error {
			if name != "rerank_evidence" {
				return fmt.Errorf("unexpected structured call %q", name)
			}
			res := out.(*rerankResponse)
			res.Order = []int{1, 0}
			return nil
		},
	}
	vectorIndex := &fakeVectorIndex{hits: []store.ChunkHit{
		{Chunk: common.Chunk{ID: "c1", Content: "first passage here"}, Score: 0.9},
		{Chunk: common.Chunk{ID: "c2", Content: "later passage here"}, Score: 0.5},
	}}
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:    aiClient,
		VectorIndex: vectorIndex,
		UseReranker: true,
	})

	got, err := r.Retrieve(context.Background(), RetrieveParams{Query: "which passage", TopK: 2})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if !got.Metadata.RerankerUsed {
		t.Fatalf("RerankerUsed = false, want true")
	}
	if got.Evidence[0].Metadata["chunk_id"] != "c2" {
		t.Errorf("top evidence chunk_id = %v, want c2 after rerank", got.Evidence[0].Metadata["chunk_id"])
	}
}

func TestRerankFallsBackOnError(t *testing.T) {
	aiClient := &fakeAI{
		format: func(name, prompt string, out any) error {
			return fmt.Errorf("model unavailable")
		},
	}
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:    aiClient,
		VectorIndex: &fakeVectorIndex{},
	})

	evidence := []common.Evidence{
		{ID: "a", Content: "a", Score: 0.9},
		{ID: "b", Content: "b", Score: 0.5},
	}
	got := r.rerank(context.Background(), "q", evidence)
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("rerank() changed order on failure: %v", got)
	}
}

func TestRerankFallsBackOnInvalidOrder(t *testing.T) {
	tests := []struct {
		name  string
		order []int
	}{
		{"too short", []int{0}},
		{"out of range", []int{0, 2}},
		{"duplicate index", []int{0, 0}},
		{"negative index", []int{-1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aiClient := &fakeAI{
				format: func(name, prompt string, out any) error {
					res := out.(*rerankResponse)
					res.Order = tt.order
					return nil
				},
			}
			r := newTestRetriever(t, NewRetrieverParams{
				AIClient:    aiClient,
				VectorIndex: &fakeVectorIndex{},
			})

			evidence := []common.Evidence{
				{ID: "a", Content: "a", Score: 0.9},
				{ID: "b", Content: "b", Score: 0.5},
			}
			got := r.rerank(context.Background(), "q", evidence)
			if got[0].ID != "a" || got[1].ID != "b" {
				t.Errorf("rerank() accepted invalid order %v", tt.order)
			}
		})
	}
}

func TestSearchGraphComposition(t *testing.T) {
	supply := testNode("supply-curve", "Supply Curve", "concept")
	demand := testNode("demand-curve", "Demand Curve", "concept")
	price := testNode("price", "Price", "concept")

	graphStore := &fakeGraphStorage{
		entities: []store.EntityHit{
			{Node: supply, Score: 1.0},
			{Node: demand, Score: 0.8},
		},
		paths: []store.GraphPath{
			{
				Nodes: []common.Node{supply, price},
				Edges: []common.Edge{{Type: "INFLUENCES", Confidence: 0.9}},
				Score: 0.81,
			},
		},
		shortest: &store.GraphPath{
			Nodes: []common.Node{supply, price, demand},
			Edges: []common.Edge{
				{Type: "INFLUENCES", Confidence: 0.9},
				{Type: "INFLUENCES", Confidence: 0.8},
			},
			Score: 1.0 / 3.0,
		},
	}
	r := newTestRetriever(t, NewRetrieverParams{
		AIClient:   &fakeAI{},
		GraphStore: graphStore,
		GraphTopK:  8,
	})

	hits, err := r.searchGraph(context.Background(), "supply curve", "")
	if err != nil {
		t.Fatalf("searchGraph() error: %v", err)
	}

	kinds := map[string]int{}
	for _, hit := range hits {
		kinds[hit.Kind]++
	}
	if kinds["entity"] != 2 {
		t.Errorf("entity hits = %d, want 2", kinds["entity"])
	}
	// Both seed entities yield the same neighborhood path.
	if kinds["subgraph"] != 2 {
		t.Errorf("subgraph hits = %d, want 2", kinds["subgraph"])
	}
	if kinds["path"] != 1 {
		t.Errorf("path hits = %d, want 1", kinds["path"])
	}

	for _, hit := range hits {
		switch hit.Kind {
		case "entity":
			if !strings.Contains(hit.Content, "concept: ") || !strings.Contains(hit.Content, "| Description: ") {
				t.Errorf("entity content = %q, want type/name/description format", hit.Content)
			}
		case "subgraph":
			if !strings.Contains(hit.Content, "Supply Curve, Price") || !strings.Contains(hit.Content, "Relations: INFLUENCES") {
				t.Errorf("subgraph content = %q", hit.Content)
			}
			// Neighborhood score is normalized by path length and
			// discounted for being an expansion.
			if !almostEqual(hit.Score, 0.81*0.8) {
				t.Errorf("subgraph score = %v, want %v", hit.Score, 0.81*0.8)
			}
		case "path":
			want := "Supply Curve -INFLUENCES-> Price → Price -INFLUENCES-> Demand Curve"
			if hit.Content != want {
				t.Errorf("path content = %q, want %q", hit.Content, want)
			}
			if hit.PathLength != 2 {
				t.Errorf("path length = %d, want 2", hit.PathLength)
			}
		}
	}
}

func TestIndexDocument(t *testing.T) {
	vectorIndex := &fakeVectorIndex{}
	ix, err := NewIndexer(NewIndexerParams{
		AIClient:    &fakeAI{},
		VectorIndex: vectorIndex,
		ChunkSize:   100,
		BatchSize:   2,
	})
	if err != nil {
		t.Fatalf("NewIndexer() error: %v", err)
	}

	text := strings.Repeat("Markets clear when supply equals demand. ", 12)
	stats, err := ix.IndexDocument(context.Background(), "doc1", "scope1", text)
	if err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}
	if stats.ChunksIndexed == 0 {
		t.Fatalf("ChunksIndexed = 0, want > 0")
	}
	if stats.ChunksIndexed != vectorIndex.upserted {
		t.Errorf("ChunksIndexed = %d, index holds %d", stats.ChunksIndexed, vectorIndex.upserted)
	}
	if stats.TokensTotal == 0 {
		t.Errorf("TokensTotal = 0, want > 0")
	}
}

func TestIndexDocumentLinksMentions(t *testing.T) {
	supply := testNode("supply_curve_1", "supply curve", "concept")
	supply.Aliases = []string{"supply schedule"}
	demand := testNode("demand_curve_1", "demand curve", "concept")
	gdp := testNode("gross_domestic_product_1", "gross domestic product", "concept")
	gdp.Aliases = []string{"GDP"}
	tax := testNode("tax_policy_1", "tax policy", "concept")

	gs := &fakeGraphStorage{
		scopeGraph: common.Graph{Nodes: []common.Node{supply, demand, gdp, tax}},
	}
	ix, err := NewIndexer(NewIndexerParams{
		AIClient:    &fakeAI{},
		VectorIndex: &fakeVectorIndex{},
		GraphStore:  gs,
		ChunkSize:   400,
	})
	if err != nil {
		t.Fatalf("NewIndexer() error: %v", err)
	}

	text := "The Supply Curve shifts right when production costs fall. " +
		"GDP growth leaves the demand curve unaffected."
	stats, err := ix.IndexDocument(context.Background(), "doc1", "section:abc", text)
	if err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}
	if stats.MentionsLinked != 3 {
		t.Errorf("MentionsLinked = %d, want 3", stats.MentionsLinked)
	}
	if len(gs.mentions) != 1 {
		t.Fatalf("expected mentions for 1 chunk, got %d", len(gs.mentions))
	}
	for _, mentions := range gs.mentions {
		byID := make(map[string]float64, len(mentions))
		for _, m := range mentions {
			byID[m.EntityID] = m.Confidence
		}
		if byID["supply_curve_1"] != 1.0 {
			t.Errorf("supply curve confidence = %v, want 1.0 for a name match", byID["supply_curve_1"])
		}
		if byID["demand_curve_1"] != 1.0 {
			t.Errorf("demand curve confidence = %v, want 1.0 for a name match", byID["demand_curve_1"])
		}
		if byID["gross_domestic_product_1"] != 0.8 {
			t.Errorf("gdp confidence = %v, want 0.8 for an alias match", byID["gross_domestic_product_1"])
		}
		if _, ok := byID["tax_policy_1"]; ok {
			t.Error("tax policy linked without appearing in the text")
		}
	}
}

func TestDeleteDocumentCleansGraphChunks(t *testing.T) {
	gs := &fakeGraphStorage{}
	ix, err := NewIndexer(NewIndexerParams{
		AIClient:    &fakeAI{},
		VectorIndex: &fakeVectorIndex{},
		GraphStore:  gs,
	})
	if err != nil {
		t.Fatalf("NewIndexer() error: %v", err)
	}
	if _, err := ix.DeleteDocument(context.Background(), "doc9"); err != nil {
		t.Fatalf("DeleteDocument() error: %v", err)
	}
	if len(gs.deleted) != 1 || gs.deleted[0] != "doc9" {
		t.Errorf("graph chunk cleanup not invoked for doc9, got %v", gs.deleted)
	}
}

func TestIndexDocumentEmpty(t *testing.T) {
	ix, err := NewIndexer(NewIndexerParams{
		AIClient:    &fakeAI{},
		VectorIndex: &fakeVectorIndex{},
	})
	if err != nil {
		t.Fatalf("NewIndexer() error: %v", err)
	}
	if _, err := ix.IndexDocument(context.Background(), "doc1", "s", "   "); err == nil {
		t.Fatalf("IndexDocument() of blank text succeeded, want error")
	}
}
