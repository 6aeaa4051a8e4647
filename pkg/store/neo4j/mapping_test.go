package neo4j

import (
	"reflect"
	"testing"
	"time"

	"github.com/quillkb/quill/backend/pkg/common"
)

func TestNodePropsRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	node := common.Node{
		ID:          "supply_curve_a1b2c3d4",
		Name:        "supply curve",
		Type:        "concept",
		Description: "Relationship between price and quantity supplied.",
		Aliases:     []string{"supply schedule"},
		Score:       0.9,
		Scopes:      []string{"section:abc", "book:economics:run12345"},
		CreatedAt:   created,
		UpdatedAt:   updated,
	}

	got := nodeFromProps(nodeProps(node))

	if !reflect.DeepEqual(got, node) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, node)
	}
}

func TestNodePropsFillsTimestamps(t *testing.T) {
	props := nodeProps(common.Node{ID: "x", Name: "x"})
	if props["created_at"] == "" || props["updated_at"] == "" {
		t.Error("expected timestamps to be filled for zero values")
	}
	if props["created_at"] != props["updated_at"] {
		t.Errorf("expected updated_at to default to created_at, got %v vs %v",
			props["created_at"], props["updated_at"])
	}
}

func TestEdgePropsRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	edge := common.Edge{
		RID:         "a1b2c3d4e5f60718",
		Type:        "IS_A",
		TypeLabel:   "is a",
		SourceID:    "supply_curve",
		TargetID:    "curve",
		Description: "A supply curve is a curve.",
		Weight:      0.8,
		Confidence:  0.7,
		Evidence:    "p. 12; p. 40",
		Scope:       "section:abc",
		SrcSection:  "abc",
		CreatedAt:   created,
	}

	got := edgeFromProps("IS_A", edgeProps(edge))
	if !reflect.DeepEqual(got, edge) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, edge)
	}
}

func TestEdgePropsDefaultsTypeLabel(t *testing.T) {
	props := edgeProps(common.Edge{RID: "r1", Type: "IS_A"})
	if props["type_label"] != "IS_A" {
		t.Errorf("type_label = %v, expected fallback to type", props["type_label"])
	}
}

func TestRelTypeFilter(t *testing.T) {
	tests := []struct {
		name     string
		relTypes []string
		expected string
	}{
		{"empty", nil, ""},
		{"single", []string{"IS_A"}, ":IS_A"},
		{"multiple", []string{"IS_A", "PART_OF"}, ":IS_A|PART_OF"},
		{"lowercase sanitized", []string{"is a"}, ":IS_A"},
		{"unknown dropped", []string{"DELETE_EVERYTHING"}, ""},
		{"injection dropped", []string{"X]->() DELETE (n"}, ""},
		{"mixed keeps known", []string{"CAUSES", "NOT_A_TYPE"}, ":CAUSES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relTypeFilter(tt.relTypes); got != tt.expected {
				t.Errorf("relTypeFilter(%v) = %q, expected %q", tt.relTypes, got, tt.expected)
			}
		})
	}
}

func TestPropStringsSkipsNonStrings(t *testing.T) {
	props := map[string]any{"aliases": []any{"a", 3, "", "b"}}
	got := propStrings(props, "aliases")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("propStrings = %v", got)
	}
}
