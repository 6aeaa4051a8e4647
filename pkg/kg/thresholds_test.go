package kg

import (
	"testing"

	"github.com/quillkb/quill/backend/pkg/common"
)

func TestFilterForStorage(t *testing.T) {
	thresholds := DefaultThresholds()
	edges := []common.Edge{
		{RID: "a", Confidence: 0.54},
		{RID: "b", Confidence: 0.55},
		{RID: "c", Confidence: 0.90},
	}

	got := thresholds.FilterForStorage(edges)
	if len(got) != 2 {
		t.Fatalf("expected 2 edges at or above theta_add, got %d", len(got))
	}
	if got[0].RID != "b" || got[1].RID != "c" {
		t.Errorf("unexpected edges %v", got)
	}
}

func TestFilterForDisplay(t *testing.T) {
	thresholds := DefaultThresholds()
	edges := []common.Edge{
		{RID: "low_confidence", Confidence: 0.59, Evidence: "one; two"},
		{RID: "single_evidence", Confidence: 0.95, Evidence: "only one fragment"},
		{RID: "no_evidence", Confidence: 0.95},
		{RID: "passes", Confidence: 0.60, Evidence: "first; second"},
		{RID: "empty_fragments", Confidence: 0.80, Evidence: "first; ; "},
	}

	got := thresholds.FilterForDisplay(edges)
	if len(got) != 1 {
		t.Fatalf("expected 1 edge to pass the display gate, got %d", len(got))
	}
	if got[0].RID != "passes" {
		t.Errorf("unexpected edge %q", got[0].RID)
	}
}

func TestEvidenceCount(t *testing.T) {
	tests := []struct {
		name     string
		evidence string
		expected int
	}{
		{"absent", "", 1},
		{"whitespace", "   ", 1},
		{"single", "one fragment", 1},
		{"two", "a; b", 2},
		{"trailing separator", "a; b;", 2},
		{"empty fragments", "; ;", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvidenceCount(tt.evidence); got != tt.expected {
				t.Errorf("EvidenceCount(%q) = %d, expected %d", tt.evidence, got, tt.expected)
			}
		})
	}
}
