package kg

import (
	"sort"
	"strings"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/logger"
)

// SectionGraph pairs a section with its stored graph for a book merge.
type SectionGraph struct {
	SectionID string
	Graph     common.Graph
}

// MergeStats reports the outcome of a book merge. The dedup ratios
// are (input - merged) / input, zero when the input was empty.
type MergeStats struct {
	SectionCount   int     `json:"section_count"`
	InputNodes     int     `json:"input_nodes"`
	MergedNodes    int     `json:"merged_nodes"`
	NodeDedupRatio float64 `json:"node_dedup_ratio"`
	InputEdges     int     `json:"input_edges"`
	MergedEdges    int     `json:"merged_edges"`
	EdgeDedupRatio float64 `json:"edge_dedup_ratio"`
	DroppedEdges   int     `json:"dropped_edges"`
}

type nodeGroup struct {
	first     common.Node
	longest   string
	aliases   map[string]string
	score     float64
	updated   common.Node
	scopes    []string
	scopeSeen map[string]struct{}
}

func (g *nodeGroup) addScopes(scopes []string) {
	for _, s := range scopes {
		if _, ok := g.scopeSeen[s]; ok || s == "" {
			continue
		}
		g.scopeSeen[s] = struct{}{}
		g.scopes = append(g.scopes, s)
	}
}

// MergeBook consolidates the graphs of many sections into one
// book-scoped graph.
//
// Nodes group by (canonical name, type): the group keeps the ID of its
// first-seen member, the longest description, the union of aliases,
// the maximum score, and the latest updated_at. Edges group by
// (source, target, type) after their endpoints are remapped onto the
// surviving node IDs: weight is averaged, confidence takes the
// maximum, and distinct descriptions and evidence fragments are
// concatenated. Merged edges are re-scoped to the book and every RID
// is regenerated, since RIDs are a function of scope. Merged nodes
// keep the union of their members' scopes and gain the book scope on
// top, so the sections' own views of a shared node stay intact.
//
// Output order is deterministic regardless of input order: nodes sort
// by ID, edges by RID.
func MergeBook(sections []SectionGraph, bookID string) (common.Graph, MergeStats) {
	scope := BookScope(bookID)
	stats := MergeStats{SectionCount: len(sections)}

	groups := make(map[string]*nodeGroup)
	order := make([]string, 0)
	remap := make(map[string]string)

	for _, section := range sections {
		for _, node := range section.Graph.Nodes {
			stats.InputNodes++
			key := Canonicalize(node.Name) + "|" + strings.ToLower(node.Type)
			group, ok := groups[key]
			if !ok {
				group = &nodeGroup{
					first:     node,
					longest:   node.Description,
					aliases:   make(map[string]string),
					score:     node.Score,
					updated:   node,
					scopeSeen: make(map[string]struct{}),
				}
				groups[key] = group
				order = append(order, key)
			}
			remap[node.ID] = group.first.ID
			group.addScopes(node.Scopes)
			if len(node.Description) > len(group.longest) {
				group.longest = node.Description
			}
			for _, alias := range node.Aliases {
				group.aliases[Canonicalize(alias)] = alias
			}
			if node.Score > group.score {
				group.score = node.Score
			}
			if node.UpdatedAt.After(group.updated.UpdatedAt) {
				group.updated = node
			}
		}
	}

	merged := common.Graph{Scope: scope}
	for _, key := range order {
		group := groups[key]
		node := group.first
		node.Description = group.longest
		node.Aliases = sortedAliasValues(group.aliases)
		node.Score = group.score
		group.addScopes([]string{scope})
		node.Scopes = group.scopes
		node.UpdatedAt = group.updated.UpdatedAt
		merged.Nodes = append(merged.Nodes, node)
	}
	sort.Slice(merged.Nodes, func(i, j int) bool { return merged.Nodes[i].ID < merged.Nodes[j].ID })

	type edgeGroup struct {
		edge         common.Edge
		weightSum    float64
		count        int
		descriptions []string
		evidence     []string
	}
	edgeGroups := make(map[string]*edgeGroup)
	edgeOrder := make([]string, 0)

	for _, section := range sections {
		for _, edge := range section.Graph.Edges {
			stats.InputEdges++
			sourceID, okSource := remap[edge.SourceID]
			targetID, okTarget := remap[edge.TargetID]
			if !okSource || !okTarget {
				stats.DroppedEdges++
				logger.Warn("dropping edge with unknown endpoint during book merge",
					"rid", edge.RID, "section", section.SectionID)
				continue
			}
			key := sourceID + "|" + targetID + "|" + edge.Type
			group, ok := edgeGroups[key]
			if !ok {
				rescoped := edge
				rescoped.SourceID = sourceID
				rescoped.TargetID = targetID
				rescoped.Scope = scope
				rescoped.RID = RelationID(edge.Type, sourceID, targetID, scope)
				group = &edgeGroup{edge: rescoped}
				edgeGroups[key] = group
				edgeOrder = append(edgeOrder, key)
			}
			group.weightSum += edge.Weight
			group.count++
			if edge.Confidence > group.edge.Confidence {
				group.edge.Confidence = edge.Confidence
			}
			group.descriptions = appendDistinct(group.descriptions, edge.Description)
			for _, fragment := range strings.Split(edge.Evidence, ";") {
				group.evidence = appendDistinct(group.evidence, fragment)
			}
		}
	}

	for _, key := range edgeOrder {
		group := edgeGroups[key]
		edge := group.edge
		edge.Weight = group.weightSum / float64(group.count)
		edge.Description = strings.Join(group.descriptions, "; ")
		edge.Evidence = strings.Join(group.evidence, "; ")
		merged.Edges = append(merged.Edges, edge)
	}
	sort.Slice(merged.Edges, func(i, j int) bool { return merged.Edges[i].RID < merged.Edges[j].RID })

	stats.MergedNodes = len(merged.Nodes)
	stats.MergedEdges = len(merged.Edges)
	if stats.InputNodes > 0 {
		stats.NodeDedupRatio = float64(stats.InputNodes-stats.MergedNodes) / float64(stats.InputNodes)
	}
	if stats.InputEdges > 0 {
		stats.EdgeDedupRatio = float64(stats.InputEdges-stats.MergedEdges) / float64(stats.InputEdges)
	}
	return merged, stats
}

func sortedAliasValues(aliases map[string]string) []string {
	if len(aliases) == 0 {
		return nil
	}
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

func appendDistinct(list []string, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
