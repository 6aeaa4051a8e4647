package neo4j

import (
	"strings"
	"time"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/kg"
)

// nodeProps flattens a node for an UNWIND row. Timestamps are stored
// as RFC3339 strings so the graph stays portable across drivers.
func nodeProps(node common.Node) map[string]any {
	createdAt := node.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := node.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return map[string]any{
		"id":         node.ID,
		"name":       node.Name,
		"type":       node.Type,
		"desc":       node.Description,
		"aliases":    anyStrings(node.Aliases),
		"score":      node.Score,
		"scopes":     anyStrings(node.Scopes),
		"created_at": createdAt.UTC().Format(time.RFC3339Nano),
		"updated_at": updatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func edgeProps(edge common.Edge) map[string]any {
	createdAt := edge.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	typeLabel := edge.TypeLabel
	if typeLabel == "" {
		typeLabel = edge.Type
	}
	return map[string]any{
		"rid":        edge.RID,
		"source_id":  edge.SourceID,
		"target_id":  edge.TargetID,
		"type_label": typeLabel,
		"desc":       edge.Description,
		"weight":     edge.Weight,
		"confidence": edge.Confidence,
		"evidence":   edge.Evidence,
		"scope":      edge.Scope,
		"src":        edge.SrcSection,
		"created_at": createdAt.UTC().Format(time.RFC3339Nano),
	}
}

func nodeFromProps(props map[string]any) common.Node {
	return common.Node{
		ID:          propString(props, "id"),
		Name:        propString(props, "name"),
		Type:        propString(props, "type"),
		Description: propString(props, "desc"),
		Aliases:     propStrings(props, "aliases"),
		Score:       propFloat(props, "score"),
		Scopes:      propStrings(props, "scopes"),
		CreatedAt:   propTime(props, "created_at"),
		UpdatedAt:   propTime(props, "updated_at"),
	}
}

// edgeFromProps rebuilds an edge from relationship properties. relType
// is the stored relationship type, which wins over the raw label.
func edgeFromProps(relType string, props map[string]any) common.Edge {
	return common.Edge{
		RID:         propString(props, "rid"),
		Type:        relType,
		TypeLabel:   propString(props, "type_label"),
		SourceID:    propString(props, "source_id"),
		TargetID:    propString(props, "target_id"),
		Description: propString(props, "desc"),
		Weight:      propFloat(props, "weight"),
		Confidence:  propFloat(props, "confidence"),
		Evidence:    propString(props, "evidence"),
		Scope:       propString(props, "scope"),
		SrcSection:  propString(props, "src"),
		CreatedAt:   propTime(props, "created_at"),
	}
}

// relTypeFilter renders a Cypher relationship type filter like
// ":IS_A|PART_OF". Types outside the known relation set are dropped,
// which keeps interpolated query text safe. Empty input matches all.
func relTypeFilter(relTypes []string) string {
	var kept []string
	for _, t := range relTypes {
		sanitized := kg.SanitizeRelationType(t)
		if kg.IsRelationType(sanitized) {
			kept = append(kept, sanitized)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return ":" + strings.Join(kept, "|")
}

// anyStrings converts to the list representation the driver accepts
// as a query parameter.
func anyStrings(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func propStrings(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func propTime(props map[string]any, key string) time.Time {
	s := propString(props, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
