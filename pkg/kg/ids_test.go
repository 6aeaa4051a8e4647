package kg

import (
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Graph Theory", "graph_theory"},
		{"punctuation", "Bayes' Theorem!", "bayes_theorem"},
		{"collapses runs", "a  -  b", "a_b"},
		{"trims underscores", "--hello--", "hello"},
		{"unicode", "拓扑学 基础", "拓扑学_基础"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.input); got != tt.expected {
				t.Errorf("Slug(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Directed   Graph ", "directed graph"},
		{"GRAPH", "graph"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Canonicalize(tt.input); got != tt.expected {
			t.Errorf("Canonicalize(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestNodeIDDeterministic(t *testing.T) {
	a := NodeID("Directed Graph", "concept", "section:abc123")
	b := NodeID("  directed   graph ", "Concept", "section:abc123")
	if a == "" {
		t.Fatal("expected non-empty node ID")
	}
	if a != b {
		t.Errorf("expected identical IDs for equivalent names, got %q and %q", a, b)
	}

	other := NodeID("Directed Graph", "concept", "section:def456")
	if other == a {
		t.Error("expected different IDs for different scopes")
	}

	typed := NodeID("Directed Graph", "method", "section:abc123")
	if typed == a {
		t.Error("expected different IDs for different types")
	}
	if !strings.Contains(typed, "_method_") {
		t.Errorf("expected non-default type in ID, got %q", typed)
	}
}

func TestNodeIDLengthCap(t *testing.T) {
	longName := strings.Repeat("characterization ", 12)
	id := NodeID(longName, "concept", "section:abc123")
	if got := len([]rune(id)); got > 64 {
		t.Fatalf("expected ID capped at 64 runes, got %d (%q)", got, id)
	}

	// Distinct long names sharing a prefix must not collide.
	other := NodeID(longName+" extended", "concept", "section:abc123")
	if other == id {
		t.Error("expected distinct IDs for distinct long names")
	}

	again := NodeID(longName, "concept", "section:abc123")
	if again != id {
		t.Error("expected capped ID to be deterministic")
	}
}

func TestRelationID(t *testing.T) {
	rid := RelationID("DEFINES", "a", "b", "section:s1")
	if len(rid) != 16 {
		t.Fatalf("expected 16-character rid, got %d", len(rid))
	}
	if rid != RelationID("DEFINES", "a", "b", "section:s1") {
		t.Error("expected deterministic rid")
	}
	if rid == RelationID("DEFINES", "a", "b", "book:b1") {
		t.Error("expected rid to change with scope")
	}
	if rid == RelationID("DEFINES", "b", "a", "section:s1") {
		t.Error("expected rid to be direction-sensitive")
	}
}

func TestSectionID(t *testing.T) {
	id := SectionID("Economics", "Micro", "Supply and Demand")
	if len(id) != 12 {
		t.Fatalf("expected 12-character section ID, got %d", len(id))
	}
	if id != SectionID("Economics", "Micro", "Supply and Demand") {
		t.Error("expected deterministic section ID")
	}
	if id == SectionID("Economics", "Micro", "Elasticity") {
		t.Error("expected different IDs for different subchapters")
	}
}

func TestBookID(t *testing.T) {
	id := BookID("Graph Theory", "V1StGXR8_Z5jdHi6B-myT")
	if id != "book:graph_theory:V1StGXR8" {
		t.Errorf("unexpected book ID %q", id)
	}
	if got := BookID("Graph Theory", "abc"); got != "book:graph_theory:abc" {
		t.Errorf("unexpected book ID for short run %q", got)
	}
}

func TestBookScope(t *testing.T) {
	if got := BookScope("book:graph_theory:abc"); got != "book:graph_theory:abc" {
		t.Errorf("expected book ID to pass through, got %q", got)
	}
	if got := BookScope("graph_theory"); got != "book:graph_theory" {
		t.Errorf("expected prefixed scope, got %q", got)
	}
}

func TestChunkID(t *testing.T) {
	id := ChunkID("doc1", 3, "some content")
	if !strings.HasPrefix(id, "doc1_chunk_0003_") {
		t.Fatalf("unexpected chunk ID format %q", id)
	}
	if id != ChunkID("doc1", 3, "some content") {
		t.Error("expected deterministic chunk ID")
	}
	if id == ChunkID("doc1", 3, "other content") {
		t.Error("expected content-sensitive chunk ID")
	}
}

func TestContentHash(t *testing.T) {
	if ContentHash("") != "" {
		t.Error("expected empty hash for empty content")
	}
	if ContentHash("a  b\nc") != ContentHash("a b c") {
		t.Error("expected whitespace-insensitive hash")
	}
	if ContentHash("a b c") == ContentHash("a b d") {
		t.Error("expected different content to hash differently")
	}
}
