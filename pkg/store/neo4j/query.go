package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/store"
)

// FetchScopeGraph returns every node and edge carrying the scope.
func (s *Store) FetchScopeGraph(ctx context.Context, scope string) (common.Graph, error) {
	graph := common.Graph{Scope: scope}

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (n:Entity) WHERE $scope IN n.scopes RETURN n ORDER BY n.id`,
			map[string]any{"scope": scope})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			if node, ok := recordNode(record, "n"); ok {
				graph.Nodes = append(graph.Nodes, nodeFromProps(node.Props))
			}
		}

		res, err = tx.Run(ctx,
			`MATCH (:Entity)-[r]->(:Entity) WHERE r.scope = $scope RETURN r ORDER BY r.rid`,
			map[string]any{"scope": scope})
		if err != nil {
			return nil, err
		}
		records, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			if rel, ok := recordRelationship(record, "r"); ok {
				graph.Edges = append(graph.Edges, edgeFromProps(rel.Type, rel.Props))
			}
		}
		return nil, nil
	})
	if err != nil {
		return common.Graph{}, fmt.Errorf("neo4j: fetch graph for scope %q: %w", scope, err)
	}
	return graph, nil
}

const searchEntitiesCypher = `
MATCH (n:Entity)
WHERE (toLower(n.name) CONTAINS $query
    OR toLower(n.desc) CONTAINS $query
    OR ANY(alias IN n.aliases WHERE toLower(alias) CONTAINS $query))
  %s
RETURN n,
       CASE
           WHEN toLower(n.name) = $query THEN 1.0
           WHEN ANY(alias IN n.aliases WHERE toLower(alias) = $query) THEN 0.9
           WHEN toLower(n.name) CONTAINS $query THEN 0.8
           WHEN ANY(alias IN n.aliases WHERE toLower(alias) CONTAINS $query) THEN 0.7
           WHEN toLower(n.desc) CONTAINS $query THEN 0.6
           ELSE 0.5
       END AS score
ORDER BY score DESC, n.id ASC
LIMIT $limit
`

// SearchEntities ranks substring matches over name, aliases and
// description. Exact name beats exact alias beats partial matches.
func (s *Store) SearchEntities(ctx context.Context, query string, types []string, scope string, limit int) ([]store.EntityHit, error) {
	if limit <= 0 {
		limit = 10
	}
	params := map[string]any{
		"query": strings.ToLower(strings.TrimSpace(query)),
		"limit": limit,
	}

	var filters []string
	if len(types) > 0 {
		filters = append(filters, "AND n.type IN $types")
		params["types"] = anyStrings(types)
	}
	if scope != "" {
		filters = append(filters, "AND $scope IN n.scopes")
		params["scope"] = scope
	}
	cypher := fmt.Sprintf(searchEntitiesCypher, strings.Join(filters, "\n  "))

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		hits := make([]store.EntityHit, 0, len(records))
		for _, record := range records {
			node, ok := recordNode(record, "n")
			if !ok {
				continue
			}
			hits = append(hits, store.EntityHit{
				Node:  nodeFromProps(node.Props),
				Score: recordFloat(record, "score"),
			})
		}
		return hits, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: search entities: %w", err)
	}
	return result.([]store.EntityHit), nil
}

// Neighborhood expands paths around an entity up to the hop limit.
// The path score is the product of confidence and weight over the
// path's edges; callers normalize by length.
func (s *Store) Neighborhood(ctx context.Context, entityID string, hops int, relTypes []string, scope string, limit int) ([]store.GraphPath, error) {
	if hops <= 0 {
		hops = 2
	}
	if limit <= 0 {
		limit = 50
	}

	scopeFilter := ""
	params := map[string]any{"entity_id": entityID, "limit": limit}
	if scope != "" {
		scopeFilter = "AND ALL(rel IN relationships(path) WHERE rel.scope = $scope)"
		params["scope"] = scope
	}

	cypher := fmt.Sprintf(`
MATCH (start:Entity {id: $entity_id})
MATCH path = (start)-[r%s*1..%d]-(end:Entity)
WHERE start <> end
  %s
WITH path, relationships(path) AS rels, nodes(path) AS pathNodes
RETURN pathNodes, rels,
       length(path) AS path_length,
       reduce(score = 1.0, rel IN rels |
           score * COALESCE(rel.confidence, 0.8) * COALESCE(rel.weight, 1.0)
       ) AS path_score
ORDER BY path_score DESC, path_length ASC
LIMIT $limit
`, relTypeFilter(relTypes), hops, scopeFilter)

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		paths := make([]store.GraphPath, 0, len(records))
		for _, record := range records {
			paths = append(paths, store.GraphPath{
				Nodes: recordNodes(record, "pathNodes"),
				Edges: recordRelationships(record, "rels"),
				Score: recordFloat(record, "path_score"),
			})
		}
		return paths, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: neighborhood of %q: %w", entityID, err)
	}
	return result.([]store.GraphPath), nil
}

// ShortestPath finds the shortest connection between two entities,
// matched by id or exact name. Score is 1/(length+1), preferring
// short paths. Returns nil when no path exists within maxHops.
func (s *Store) ShortestPath(ctx context.Context, startID, endID string, maxHops int, relTypes []string) (*store.GraphPath, error) {
	if maxHops <= 0 {
		maxHops = 3
	}

	cypher := fmt.Sprintf(`
MATCH (start:Entity), (end:Entity)
WHERE (start.id = $start OR start.name = $start)
  AND (end.id = $end OR end.name = $end)
MATCH path = shortestPath((start)-[r%s*1..%d]-(end))
RETURN nodes(path) AS pathNodes, relationships(path) AS rels,
       length(path) AS path_length
LIMIT 1
`, relTypeFilter(relTypes), maxHops)

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"start": startID, "end": endID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return (*store.GraphPath)(nil), nil
		}
		record := records[0]
		length := recordFloat(record, "path_length")
		return &store.GraphPath{
			Nodes: recordNodes(record, "pathNodes"),
			Edges: recordRelationships(record, "rels"),
			Score: 1.0 / (length + 1),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: shortest path %q -> %q: %w", startID, endID, err)
	}
	return result.(*store.GraphPath), nil
}

// Stats counts nodes and edges, for the whole graph when scope is
// empty or restricted to one scope otherwise.
func (s *Store) Stats(ctx context.Context, scope string) (common.GraphStats, error) {
	nodeQuery := `MATCH (n:Entity) RETURN count(n) AS c`
	edgeQuery := `MATCH (:Entity)-[r]->(:Entity) RETURN count(r) AS c`
	params := map[string]any{}
	if scope != "" {
		nodeQuery = `MATCH (n:Entity) WHERE $scope IN n.scopes RETURN count(n) AS c`
		edgeQuery = `MATCH (:Entity)-[r]->(:Entity) WHERE r.scope = $scope RETURN count(r) AS c`
		params["scope"] = scope
	}

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodeCount, err := runCount(ctx, tx, nodeQuery, params)
		if err != nil {
			return nil, err
		}
		edgeCount, err := runCount(ctx, tx, edgeQuery, params)
		if err != nil {
			return nil, err
		}
		return common.GraphStats{Scope: scope, NodeCount: nodeCount, EdgeCount: edgeCount}, nil
	})
	if err != nil {
		return common.GraphStats{}, fmt.Errorf("neo4j: stats: %w", err)
	}
	return result.(common.GraphStats), nil
}

func runCount(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (int, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return 0, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	value, _ := record.Get("c")
	count, _ := value.(int64)
	return int(count), nil
}

func recordNode(record *neo4j.Record, key string) (dbtype.Node, bool) {
	value, ok := record.Get(key)
	if !ok {
		return dbtype.Node{}, false
	}
	node, ok := value.(dbtype.Node)
	return node, ok
}

func recordRelationship(record *neo4j.Record, key string) (dbtype.Relationship, bool) {
	value, ok := record.Get(key)
	if !ok {
		return dbtype.Relationship{}, false
	}
	rel, ok := value.(dbtype.Relationship)
	return rel, ok
}

func recordNodes(record *neo4j.Record, key string) []common.Node {
	value, ok := record.Get(key)
	if !ok {
		return nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	nodes := make([]common.Node, 0, len(raw))
	for _, item := range raw {
		if node, ok := item.(dbtype.Node); ok {
			nodes = append(nodes, nodeFromProps(node.Props))
		}
	}
	return nodes
}

func recordRelationships(record *neo4j.Record, key string) []common.Edge {
	value, ok := record.Get(key)
	if !ok {
		return nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	edges := make([]common.Edge, 0, len(raw))
	for _, item := range raw {
		if rel, ok := item.(dbtype.Relationship); ok {
			edges = append(edges, edgeFromProps(rel.Type, rel.Props))
		}
	}
	return edges
}

func recordFloat(record *neo4j.Record, key string) float64 {
	value, ok := record.Get(key)
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}
