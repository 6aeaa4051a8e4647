package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"
)

const upsertNodesCypher = `
UNWIND $rows AS row
MERGE (n:Entity {id: row.id})
ON CREATE SET n.created_at = row.created_at, n.scopes = []
SET n.name = row.name,
    n.type = row.type,
    n.desc = row.desc,
    n.aliases = row.aliases,
    n.score = row.score,
    n.scopes = n.scopes + [s IN row.scopes WHERE NOT s IN n.scopes],
    n.updated_at = row.updated_at
`

// UpsertNodes merges nodes by id in batches. created_at survives
// re-runs, and scopes accumulate as a set: a book merge adds the book
// scope to a node without detaching it from the section scopes it was
// extracted under. A failing batch falls back to row-at-a-time writes
// so one bad node is counted instead of sinking the whole batch.
func (s *Store) UpsertNodes(ctx context.Context, nodes []common.Node) (store.WriteStats, error) {
	stats := store.WriteStats{}
	if len(nodes) == 0 {
		return stats, nil
	}

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	err := store.ChunkRange(len(nodes), s.batchSize, func(start, end int) error {
		rows := make([]map[string]any, 0, end-start)
		for _, node := range nodes[start:end] {
			rows = append(rows, nodeProps(node))
		}
		if err := runWrite(ctx, session, upsertNodesCypher, map[string]any{"rows": rows}); err != nil {
			logger.Warn("node batch write failed, retrying per row", "error", err, "batch_size", len(rows))
			for _, row := range rows {
				rowErr := runWrite(ctx, session, upsertNodesCypher, map[string]any{"rows": []map[string]any{row}})
				if rowErr != nil {
					logger.Error("node write failed", "node_id", row["id"], "error", rowErr)
					stats.Errors++
					continue
				}
				stats.NodesWritten++
			}
			return nil
		}
		stats.NodesWritten += len(rows)
		return nil
	})
	return stats, err
}

// UpsertEdges merges edges by rid. The relationship type is part of
// the query text, so edges are grouped by their sanitized type and
// only known relation types ever reach the interpolation.
func (s *Store) UpsertEdges(ctx context.Context, edges []common.Edge) (store.WriteStats, error) {
	stats := store.WriteStats{}
	if len(edges) == 0 {
		return stats, nil
	}

	byType := make(map[string][]common.Edge)
	for _, edge := range edges {
		relType, _ := kg.ResolveRelationType(edge.Type)
		byType[relType] = append(byType[relType], edge)
	}

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for relType, group := range byType {
		cypher := upsertEdgesCypher(relType)
		err := store.ChunkRange(len(group), s.batchSize, func(start, end int) error {
			rows := make([]map[string]any, 0, end-start)
			for _, edge := range group[start:end] {
				rows = append(rows, edgeProps(edge))
			}
			if err := runWrite(ctx, session, cypher, map[string]any{"rows": rows}); err != nil {
				logger.Warn("edge batch write failed, retrying per row",
					"type", relType, "error", err, "batch_size", len(rows))
				for _, row := range rows {
					rowErr := runWrite(ctx, session, cypher, map[string]any{"rows": []map[string]any{row}})
					if rowErr != nil {
						logger.Error("edge write failed", "rid", row["rid"], "error", rowErr)
						stats.Errors++
						continue
					}
					stats.EdgesWritten++
				}
				return nil
			}
			stats.EdgesWritten += len(rows)
			return nil
		})
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func upsertEdgesCypher(relType string) string {
	return fmt.Sprintf(`
UNWIND $rows AS row
MATCH (source:Entity {id: row.source_id})
MATCH (target:Entity {id: row.target_id})
MERGE (source)-[r:%s {rid: row.rid}]->(target)
ON CREATE SET r.created_at = row.created_at
SET r.source_id = row.source_id,
    r.target_id = row.target_id,
    r.type_label = row.type_label,
    r.desc = row.desc,
    r.weight = row.weight,
    r.confidence = row.confidence,
    r.evidence = row.evidence,
    r.scope = row.scope,
    r.src = row.src
`, relType)
}

// DeleteEdgesByScope removes every edge carrying the scope and returns
// the count. Nodes stay, also when they end up orphaned.
func (s *Store) DeleteEdgesByScope(ctx context.Context, scope string) (int, error) {
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (:Entity)-[r]->(:Entity) WHERE r.scope = $scope DELETE r RETURN count(r) AS deleted`,
			map[string]any{"scope": scope})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		count, _ := deleted.(int64)
		return int(count), nil
	})
	if err != nil {
		return 0, fmt.Errorf("neo4j: delete edges for scope %q: %w", scope, err)
	}
	return result.(int), nil
}

func runWrite(ctx context.Context, session neo4j.SessionWithContext, cypher string, params map[string]any) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}
