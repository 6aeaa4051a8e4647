package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/store"
)

// GraphHit is one graph channel result before merging. Kind is
// "entity", "path" or "subgraph" and drives the merger's rescoring.
type GraphHit struct {
	Kind          string
	Content       string
	Score         float64
	PathLength    int
	NodeCount     int
	AvgConfidence float64
}

// searchGraph composes the graph channel: direct entity matches for
// half the budget, then the neighborhoods of the best three entities
// for the other half at a 0.8 relevance discount.
func (r *Retriever) searchGraph(ctx context.Context, query, scope string) ([]GraphHit, error) {
	entityBudget := r.graphTopK / 2
	if entityBudget < 1 {
		entityBudget = 1
	}

	entities, err := r.graphStore.SearchEntities(ctx, query, nil, scope, entityBudget)
	if err != nil {
		return nil, fmt.Errorf("entity search: %w", err)
	}

	hits := make([]GraphHit, 0, r.graphTopK)
	for _, ent := range entities {
		hits = append(hits, GraphHit{
			Kind:    "entity",
			Content: entityContent(ent.Node),
			Score:   ent.Score,
		})
	}

	seeds := entities
	if len(seeds) > 3 {
		seeds = seeds[:3]
	}
	for _, seed := range seeds {
		paths, err := r.graphStore.Neighborhood(ctx, seed.Node.ID, r.graphHops, r.relTypes, scope, entityBudget)
		if err != nil {
			return nil, fmt.Errorf("neighborhood of %s: %w", seed.Node.ID, err)
		}
		for _, path := range paths {
			length := path.Length()
			if length == 0 {
				continue
			}
			hits = append(hits, GraphHit{
				Kind:          "subgraph",
				Content:       subgraphContent(path, r.graphHops),
				Score:         path.Score / float64(length) * 0.8,
				NodeCount:     len(path.Nodes),
				AvgConfidence: meanEdgeConfidence(path.Edges),
			})
		}
	}

	if len(entities) >= 2 {
		path, err := r.graphStore.ShortestPath(ctx, entities[0].Node.ID, entities[1].Node.ID, r.graphHops*2, r.relTypes)
		if err != nil {
			return nil, fmt.Errorf("shortest path: %w", err)
		}
		if path != nil && path.Length() > 0 {
			hits = append(hits, GraphHit{
				Kind:       "path",
				Content:    pathContent(*path),
				Score:      path.Score,
				PathLength: path.Length(),
			})
		}
	}

	sortGraphHits(hits)
	if len(hits) > r.graphTopK {
		hits = hits[:r.graphTopK]
	}
	return hits, nil
}

func sortGraphHits(hits []GraphHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

func entityContent(node common.Node) string {
	return fmt.Sprintf("%s: %s | Description: %s", node.Type, node.Name, node.Description)
}

func pathContent(path store.GraphPath) string {
	segments := make([]string, 0, len(path.Edges))
	for i, edge := range path.Edges {
		if i+1 >= len(path.Nodes) {
			break
		}
		segments = append(segments, fmt.Sprintf("%s -%s-> %s", path.Nodes[i].Name, edge.Type, path.Nodes[i+1].Name))
	}
	return strings.Join(segments, " → ")
}

func subgraphContent(path store.GraphPath, hops int) string {
	names := make([]string, 0, len(path.Nodes))
	for _, node := range path.Nodes {
		names = append(names, node.Name)
	}
	types := make([]string, 0, len(path.Edges))
	seen := make(map[string]struct{}, len(path.Edges))
	for _, edge := range path.Edges {
		if _, ok := seen[edge.Type]; ok {
			continue
		}
		seen[edge.Type] = struct{}{}
		types = append(types, edge.Type)
	}
	return fmt.Sprintf("Subgraph (%d hops): %s | Relations: %s", hops, strings.Join(names, ", "), strings.Join(types, ", "))
}

func meanEdgeConfidence(edges []common.Edge) float64 {
	if len(edges) == 0 {
		return 0
	}
	total := 0.0
	for _, edge := range edges {
		total += edge.Confidence
	}
	return total / float64(len(edges))
}
