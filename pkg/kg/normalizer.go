package kg

import (
	"sort"
	"strings"

	"github.com/quillkb/quill/backend/pkg/logger"
)

// DraftNode is an extraction candidate before it has an identity.
// Nodes are referenced by name until the idempotent processor assigns
// deterministic IDs.
type DraftNode struct {
	Name        string
	Type        string
	Description string
	Aliases     []string
	Score       float64
}

// DraftEdge is an extraction candidate relation. Source and Target
// hold entity names, not IDs.
type DraftEdge struct {
	Type        string
	Source      string
	Target      string
	Description string
	Weight      float64
	Confidence  float64
	Evidence    string
}

// Draft is the raw output of one or more extraction calls over a
// section's units, before normalization and ID assignment.
type Draft struct {
	Nodes []DraftNode
	Edges []DraftEdge
}

const (
	defaultNodeScore      = 1.0
	defaultEdgeWeight     = 1.0
	defaultEdgeConfidence = 0.8
)

// Normalize cleans a draft in place semantics-preserving: names and
// descriptions get whitespace-normalized, alias lists are deduplicated
// and sorted, numeric fields are clamped into [0,1] with defaults for
// missing values. Malformed entries (empty names, dangling or
// self-referential edges) are dropped with a warning rather than
// failing the batch.
func Normalize(draft Draft) Draft {
	out := Draft{
		Nodes: make([]DraftNode, 0, len(draft.Nodes)),
		Edges: make([]DraftEdge, 0, len(draft.Edges)),
	}

	names := make(map[string]struct{}, len(draft.Nodes))
	for _, node := range draft.Nodes {
		name := normalizeText(node.Name)
		if name == "" {
			logger.Warn("dropping node without a name", "type", node.Type)
			continue
		}
		nodeType := strings.TrimSpace(node.Type)
		if nodeType == "" {
			nodeType = NodeTypeDefault
		}
		score := node.Score
		if score == 0 {
			score = defaultNodeScore
		}
		out.Nodes = append(out.Nodes, DraftNode{
			Name:        name,
			Type:        nodeType,
			Description: normalizeText(node.Description),
			Aliases:     normalizeAliases(node.Aliases, name),
			Score:       clamp01(score),
		})
		names[Canonicalize(name)] = struct{}{}
	}

	for _, edge := range draft.Edges {
		source := normalizeText(edge.Source)
		target := normalizeText(edge.Target)
		if source == "" || target == "" {
			logger.Warn("dropping edge with missing endpoint", "source", edge.Source, "target", edge.Target)
			continue
		}
		if Canonicalize(source) == Canonicalize(target) {
			logger.Warn("dropping self-referential edge", "node", source)
			continue
		}
		weight := edge.Weight
		if weight == 0 {
			weight = defaultEdgeWeight
		}
		confidence := edge.Confidence
		if confidence == 0 {
			confidence = defaultEdgeConfidence
		}
		out.Edges = append(out.Edges, DraftEdge{
			Type:        strings.TrimSpace(edge.Type),
			Source:      source,
			Target:      target,
			Description: normalizeText(edge.Description),
			Weight:      clamp01(weight),
			Confidence:  clamp01(confidence),
			Evidence:    strings.TrimSpace(edge.Evidence),
		})
	}

	return out
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeAliases dedupes case-insensitively and drops the alias that
// equals the canonical name itself.
func normalizeAliases(aliases []string, canonicalName string) []string {
	if len(aliases) == 0 {
		return nil
	}
	canonical := Canonicalize(canonicalName)
	seen := make(map[string]struct{}, len(aliases))
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		normalized := normalizeText(alias)
		if normalized == "" {
			continue
		}
		key := Canonicalize(normalized)
		if key == canonical {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
