package kg

import (
	"time"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/logger"
)

// AssignIDs turns a normalized draft into a scoped graph with
// deterministic identities. Node IDs derive from (canonical name,
// type, scope); edge RIDs from (type, source, target, scope). The
// operation is idempotent: running it twice over the same draft and
// scope yields byte-identical IDs.
//
// Batch-local dedup happens here. Nodes with the same identity
// collapse to the first occurrence; so do edges with the same
// (source, target, type). Confidence is never averaged at this stage,
// cross-section consolidation belongs to MergeBook. Edges whose
// endpoints did not survive normalization are dropped with a warning,
// since the missing node may legitimately live in another scope.
func AssignIDs(draft Draft, scope, sectionID string) common.Graph {
	now := time.Now().UTC()
	graph := common.Graph{
		Scope: scope,
		Nodes: make([]common.Node, 0, len(draft.Nodes)),
		Edges: make([]common.Edge, 0, len(draft.Edges)),
	}

	idByName := make(map[string]string, len(draft.Nodes))
	seenNodes := make(map[string]struct{}, len(draft.Nodes))
	for _, node := range draft.Nodes {
		id := NodeID(node.Name, node.Type, scope)
		if id == "" {
			continue
		}
		key := Canonicalize(node.Name)
		if _, ok := idByName[key]; !ok {
			idByName[key] = id
		}
		if _, ok := seenNodes[id]; ok {
			continue
		}
		seenNodes[id] = struct{}{}
		graph.Nodes = append(graph.Nodes, common.Node{
			ID:          id,
			Name:        node.Name,
			Type:        node.Type,
			Description: node.Description,
			Aliases:     node.Aliases,
			Score:       node.Score,
			Scopes:      []string{scope},
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	seenEdges := make(map[string]struct{}, len(draft.Edges))
	for _, edge := range draft.Edges {
		sourceID, okSource := idByName[Canonicalize(edge.Source)]
		targetID, okTarget := idByName[Canonicalize(edge.Target)]
		if !okSource || !okTarget {
			logger.Warn("dropping edge with unresolved endpoint",
				"source", edge.Source, "target", edge.Target, "scope", scope)
			continue
		}
		relType, typeLabel := ResolveRelationType(edge.Type)
		fingerprint := sourceID + "|" + targetID + "|" + relType
		if _, ok := seenEdges[fingerprint]; ok {
			continue
		}
		seenEdges[fingerprint] = struct{}{}
		graph.Edges = append(graph.Edges, common.Edge{
			RID:         RelationID(relType, sourceID, targetID, scope),
			Type:        relType,
			TypeLabel:   typeLabel,
			SourceID:    sourceID,
			TargetID:    targetID,
			Description: edge.Description,
			Weight:      edge.Weight,
			Confidence:  edge.Confidence,
			Evidence:    edge.Evidence,
			Scope:       scope,
			SrcSection:  sectionID,
			CreatedAt:   now,
		})
	}

	return graph
}
