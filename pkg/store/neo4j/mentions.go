package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/store"
)

const linkChunkMentionsCypher = `
MERGE (d:Document {id: $doc_id})
MERGE (c:Chunk {id: $chunk_id})
SET c.doc_id = $doc_id,
    c.idx = $idx,
    c.scope = $scope,
    c.start_char = $start_char,
    c.end_char = $end_char
MERGE (d)-[:HAS_CHUNK]->(c)
WITH c
UNWIND $mentions AS m
MATCH (e:Entity {id: m.entity_id})
MERGE (c)-[r:MENTIONS]->(e)
SET r.confidence = m.confidence
`

// LinkChunkMentions attaches a chunk to the graph: the chunk hangs off
// its document via HAS_CHUNK, and each detected entity gets a
// confidence-weighted MENTIONS edge. Chunk content itself stays in the
// vector index; the graph only carries the chunk's position.
func (s *Store) LinkChunkMentions(ctx context.Context, chunk common.Chunk, mentions []store.ChunkMention) error {
	if chunk.ID == "" || chunk.DocID == "" {
		return fmt.Errorf("neo4j: chunk id and doc id are required")
	}

	rows := make([]map[string]any, 0, len(mentions))
	for _, m := range mentions {
		if m.EntityID == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"entity_id":  m.EntityID,
			"confidence": m.Confidence,
		})
	}

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	err := runWrite(ctx, session, linkChunkMentionsCypher, map[string]any{
		"doc_id":     chunk.DocID,
		"chunk_id":   chunk.ID,
		"idx":        chunk.Index,
		"scope":      chunk.Scope,
		"start_char": chunk.StartChar,
		"end_char":   chunk.EndChar,
		"mentions":   rows,
	})
	if err != nil {
		return fmt.Errorf("neo4j: link mentions for chunk %q: %w", chunk.ID, err)
	}
	return nil
}

// DeleteChunksByDoc removes a document's chunk nodes and their
// HAS_CHUNK and MENTIONS edges, then the document node itself.
// Entities stay. Returns the number of chunks removed.
func (s *Store) DeleteChunksByDoc(ctx context.Context, docID string) (int, error) {
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (c:Chunk {doc_id: $doc_id}) DETACH DELETE c RETURN count(c) AS deleted`,
			map[string]any{"doc_id": docID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		count, _ := deleted.(int64)

		res, err = tx.Run(ctx,
			`MATCH (d:Document {id: $doc_id}) DETACH DELETE d`,
			map[string]any{"doc_id": docID})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return int(count), nil
	})
	if err != nil {
		return 0, fmt.Errorf("neo4j: delete chunks for doc %q: %w", docID, err)
	}
	return result.(int), nil
}
