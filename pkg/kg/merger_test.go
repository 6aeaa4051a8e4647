package kg

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/quillkb/quill/backend/pkg/common"
)

func sectionFor(t *testing.T, sectionID string, draft Draft) SectionGraph {
	t.Helper()
	return SectionGraph{
		SectionID: sectionID,
		Graph:     AssignIDs(Normalize(draft), SectionScope(sectionID), sectionID),
	}
}

func TestMergeBookGroupsNodes(t *testing.T) {
	s1 := sectionFor(t, "s1", Draft{
		Nodes: []DraftNode{
			{Name: "Supply Curve", Description: "short", Aliases: []string{"supply"}, Score: 0.8},
			{Name: "Demand Curve"},
		},
		Edges: []DraftEdge{{Type: "CONTRASTS_WITH", Source: "Supply Curve", Target: "Demand Curve", Confidence: 0.9, Weight: 0.6}},
	})
	s2 := sectionFor(t, "s2", Draft{
		Nodes: []DraftNode{
			{Name: "supply curve", Description: "a much longer description of the supply curve", Aliases: []string{"S curve"}, Score: 0.9},
			{Name: "Demand Curve"},
		},
		Edges: []DraftEdge{{Type: "CONTRASTS_WITH", Source: "supply curve", Target: "Demand Curve", Confidence: 0.7, Weight: 0.8}},
	})

	bookID := BookID("Economics", "run12345")
	merged, stats := MergeBook([]SectionGraph{s1, s2}, bookID)

	if len(merged.Nodes) != 2 {
		t.Fatalf("expected 2 merged nodes, got %d", len(merged.Nodes))
	}
	var supply common.Node
	for _, node := range merged.Nodes {
		if Canonicalize(node.Name) == "supply curve" {
			supply = node
		}
	}
	if supply.ID == "" {
		t.Fatal("supply curve node missing after merge")
	}
	if supply.Description != "a much longer description of the supply curve" {
		t.Errorf("expected longest description kept, got %q", supply.Description)
	}
	if !reflect.DeepEqual(supply.Aliases, []string{"S curve", "supply"}) {
		t.Errorf("expected alias union, got %v", supply.Aliases)
	}
	if supply.Score != 0.9 {
		t.Errorf("expected max score kept, got %v", supply.Score)
	}
	wantScopes := []string{SectionScope("s1"), SectionScope("s2"), BookScope(bookID)}
	if !reflect.DeepEqual(supply.Scopes, wantScopes) {
		t.Errorf("expected section scopes plus book scope, got %v want %v", supply.Scopes, wantScopes)
	}

	if stats.InputNodes != 4 || stats.MergedNodes != 2 {
		t.Errorf("unexpected node stats %+v", stats)
	}
	if stats.NodeDedupRatio != 0.5 {
		t.Errorf("expected node dedup ratio 0.5, got %v", stats.NodeDedupRatio)
	}
}

func TestMergeBookGroupsEdges(t *testing.T) {
	s1 := sectionFor(t, "s1", Draft{
		Nodes: []DraftNode{{Name: "A"}, {Name: "B"}},
		Edges: []DraftEdge{{Type: "DEFINES", Source: "A", Target: "B", Confidence: 0.9, Weight: 0.6, Description: "from s1", Evidence: "e1"}},
	})
	s2 := sectionFor(t, "s2", Draft{
		Nodes: []DraftNode{{Name: "A"}, {Name: "B"}},
		Edges: []DraftEdge{{Type: "DEFINES", Source: "A", Target: "B", Confidence: 0.7, Weight: 0.8, Description: "from s2", Evidence: "e1; e2"}},
	})

	bookID := BookID("Test", "run12345")
	merged, stats := MergeBook([]SectionGraph{s1, s2}, bookID)

	if len(merged.Edges) != 1 {
		t.Fatalf("expected 1 merged edge, got %d", len(merged.Edges))
	}
	edge := merged.Edges[0]
	if math.Abs(edge.Weight-0.7) > 1e-9 {
		t.Errorf("expected averaged weight 0.7, got %v", edge.Weight)
	}
	if edge.Confidence != 0.9 {
		t.Errorf("expected max confidence, got %v", edge.Confidence)
	}
	if edge.Description != "from s1; from s2" {
		t.Errorf("expected concatenated distinct descriptions, got %q", edge.Description)
	}
	if edge.Evidence != "e1; e2" {
		t.Errorf("expected distinct evidence fragments, got %q", edge.Evidence)
	}
	if edge.Scope != BookScope(bookID) {
		t.Errorf("expected book scope, got %q", edge.Scope)
	}
	if edge.RID != RelationID(edge.Type, edge.SourceID, edge.TargetID, edge.Scope) {
		t.Error("expected rid regenerated for the book scope")
	}
	if stats.EdgeDedupRatio != 0.5 {
		t.Errorf("expected edge dedup ratio 0.5, got %v", stats.EdgeDedupRatio)
	}
}

func TestMergeBookRemapsEndpoints(t *testing.T) {
	// The same entities appear in two sections under different node IDs.
	// Edges from the second section must land on the surviving node IDs.
	s1 := sectionFor(t, "s1", Draft{
		Nodes: []DraftNode{{Name: "A"}, {Name: "B"}},
	})
	s2 := sectionFor(t, "s2", Draft{
		Nodes: []DraftNode{{Name: "A"}, {Name: "B"}},
		Edges: []DraftEdge{{Type: "USES", Source: "A", Target: "B", Confidence: 0.9}},
	})

	merged, _ := MergeBook([]SectionGraph{s1, s2}, BookID("Test", "run12345"))
	if len(merged.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(merged.Edges))
	}

	nodeIDs := make(map[string]struct{})
	for _, node := range merged.Nodes {
		nodeIDs[node.ID] = struct{}{}
	}
	edge := merged.Edges[0]
	if _, ok := nodeIDs[edge.SourceID]; !ok {
		t.Errorf("edge source %q not among merged nodes", edge.SourceID)
	}
	if _, ok := nodeIDs[edge.TargetID]; !ok {
		t.Errorf("edge target %q not among merged nodes", edge.TargetID)
	}
}

func TestMergeBookDeterministicOrder(t *testing.T) {
	s1 := sectionFor(t, "s1", Draft{Nodes: []DraftNode{{Name: "Zebra"}, {Name: "Apple"}}})
	first, _ := MergeBook([]SectionGraph{s1}, BookID("Test", "run12345"))
	second, _ := MergeBook([]SectionGraph{s1}, BookID("Test", "run12345"))

	if !reflect.DeepEqual(nodeIDList(first), nodeIDList(second)) {
		t.Error("expected deterministic node order")
	}
	if !isSorted(nodeIDList(first)) {
		t.Errorf("expected nodes sorted by ID, got %v", nodeIDList(first))
	}
}

func TestMergeBookEmpty(t *testing.T) {
	merged, stats := MergeBook(nil, BookID("Test", "run12345"))
	if len(merged.Nodes) != 0 || len(merged.Edges) != 0 {
		t.Error("expected empty merge result")
	}
	if stats.NodeDedupRatio != 0 || stats.EdgeDedupRatio != 0 {
		t.Errorf("expected zero ratios for empty input, got %+v", stats)
	}
}

func TestMergeBookKeepsLatestUpdate(t *testing.T) {
	older := common.Node{ID: "a_1", Name: "A", Type: "concept", UpdatedAt: time.Now().Add(-time.Hour)}
	newer := common.Node{ID: "a_2", Name: "A", Type: "concept", UpdatedAt: time.Now()}
	sections := []SectionGraph{
		{SectionID: "s1", Graph: common.Graph{Nodes: []common.Node{older}}},
		{SectionID: "s2", Graph: common.Graph{Nodes: []common.Node{newer}}},
	}

	merged, _ := MergeBook(sections, BookID("Test", "run12345"))
	if len(merged.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(merged.Nodes))
	}
	if merged.Nodes[0].ID != "a_1" {
		t.Errorf("expected first-seen ID kept, got %q", merged.Nodes[0].ID)
	}
	if !merged.Nodes[0].UpdatedAt.Equal(newer.UpdatedAt) {
		t.Error("expected latest updated_at kept")
	}
}

func nodeIDList(graph common.Graph) []string {
	ids := make([]string, 0, len(graph.Nodes))
	for _, node := range graph.Nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

func isSorted(list []string) bool {
	for i := 1; i < len(list); i++ {
		if list[i-1] > list[i] {
			return false
		}
	}
	return true
}
