package retrieval

import (
	"math"
	"reflect"
	"testing"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/store"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func chunkHit(id, content string, score float64) store.ChunkHit {
	return store.ChunkHit{
		Chunk: common.Chunk{ID: id, DocID: "doc1", Content: content},
		Score: score,
	}
}

func TestNewMergerNormalizesWeights(t *testing.T) {
	tests := []struct {
		name      string
		alpha     float64
		beta      float64
		wantAlpha float64
		wantBeta  float64
	}{
		{"already normalized", 0.7, 0.3, 0.7, 0.3},
		{"scaled down", 2, 2, 0.5, 0.5},
		{"vector only", 1, 0, 1, 0},
		{"zero weights kept", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMerger(tt.alpha, tt.beta)
			if !almostEqual(m.Alpha(), tt.wantAlpha) || !almostEqual(m.Beta(), tt.wantBeta) {
				t.Errorf("NewMerger(%v, %v) = (%v, %v), want (%v, %v)",
					tt.alpha, tt.beta, m.Alpha(), m.Beta(), tt.wantAlpha, tt.wantBeta)
			}
		})
	}
}

func TestRescoreGraphHit(t *testing.T) {
	tests := []struct {
		name string
		hit  GraphHit
		want float64
	}{
		{
			name: "entity passes through",
			hit:  GraphHit{Kind: "entity", Score: 0.5},
			want: 0.5,
		},
		{
			name: "path gets length penalty",
			hit:  GraphHit{Kind: "path", Score: 0.5, PathLength: 3},
			want: 0.125,
		},
		{
			name: "subgraph node bonus capped",
			hit:  GraphHit{Kind: "subgraph", Score: 0.5, NodeCount: 5, AvgConfidence: 0.9},
			want: 0.5 * 1.3 * 0.9,
		},
		{
			name: "subgraph small node bonus",
			hit:  GraphHit{Kind: "subgraph", Score: 0.5, NodeCount: 2, AvgConfidence: 1},
			want: 0.5 * 1.2,
		},
		{
			name: "subgraph missing confidence defaults",
			hit:  GraphHit{Kind: "subgraph", Score: 0.5, NodeCount: 2},
			want: 0.5 * 1.2 * 0.8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rescoreGraphHit(tt.hit); !almostEqual(got, tt.want) {
				t.Errorf("rescoreGraphHit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeScores(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []float64
	}{
		{"empty", nil, nil},
		{"single score unchanged", []float64{0.4}, []float64{0.4}},
		{"zero range unchanged", []float64{0.6, 0.6}, []float64{0.6, 0.6}},
		{"spread", []float64{0.2, 0.6, 1.0}, []float64{0, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeScores(tt.scores)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeScores() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !almostEqual(got[i], tt.want[i]) {
					t.Errorf("normalizeScores()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestContentKey(t *testing.T) {
	a := contentKey("Supply curve shifts right.")
	b := contentKey("supply CURVE, shifts right!!!")
	c := contentKey("Demand curve shifts left.")
	if a != b {
		t.Errorf("keys differ for equivalent content: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("keys collide for different content: %q", a)
	}
	if len(a) != 16 {
		t.Errorf("key length = %d, want 16", len(a))
	}
}

func TestMergeVectorOnly(t *testing.T) {
	m := NewMerger(0.7, 0.3)
	hits := []store.ChunkHit{
		chunkHit("c1", "first chunk text", 0.9),
		chunkHit("c2", "second chunk text", 0.5),
		chunkHit("c3", "third chunk texts", 0.1),
	}

	got := m.Merge(hits, nil, 10)
	if len(got) != 3 {
		t.Fatalf("Merge() returned %d results, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not sorted: score[%d]=%v > score[%d]=%v", i, got[i].Score, i-1, got[i-1].Score)
		}
	}
	if got[0].Type != "vector" {
		t.Errorf("Type = %q, want vector", got[0].Type)
	}
	if !reflect.DeepEqual(got[0].Sources, []string{"vector"}) {
		t.Errorf("Sources = %v, want [vector]", got[0].Sources)
	}
	// Contents are equal length, so ordering follows the raw scores.
	if got[0].Metadata["chunk_id"] != "c1" {
		t.Errorf("best hit chunk_id = %v, want c1", got[0].Metadata["chunk_id"])
	}
	// Top normalized score 1.0 * alpha + length bonus.
	wantTop := 0.7 + float64(len("first chunk text"))/1000
	if !almostEqual(got[0].Score, wantTop) {
		t.Errorf("top score = %v, want %v", got[0].Score, wantTop)
	}
}

func TestMergeCollisionBecomesHybrid(t *testing.T) {
	m := NewMerger(0.7, 0.3)
	content := "Supply and demand set price."
	vectorHits := []store.ChunkHit{chunkHit("c1", content, 0.9)}
	graphHits := []GraphHit{{Kind: "entity", Content: "Supply, and demand SET price", Score: 0.5}}

	got := m.Merge(vectorHits, graphHits, 10)
	if len(got) != 1 {
		t.Fatalf("Merge() returned %d results, want 1 after dedup", len(got))
	}

	ev := got[0]
	if ev.Type != "hybrid" {
		t.Errorf("Type = %q, want hybrid", ev.Type)
	}
	if !reflect.DeepEqual(ev.Sources, []string{"vector", "graph"}) {
		t.Errorf("Sources = %v, want [vector graph]", ev.Sources)
	}
	if ev.Content != content {
		t.Errorf("Content = %q, want the higher scoring channel's content", ev.Content)
	}

	// Single hit per channel, so min-max leaves the raw scores alone:
	// vector 0.9*0.7=0.63 and graph 0.5*0.3=0.15, collision combined as
	// (0.63 + 0.5*0.15)/1.5, then +0.1 multi-source and the length bonus.
	base := (0.9*0.7 + 0.5*(0.5*0.3)) / 1.5
	want := base + 0.1 + float64(len(content))/1000
	if !almostEqual(ev.Score, want) {
		t.Errorf("Score = %v, want %v", ev.Score, want)
	}
}

func TestMergeLengthBonusCapped(t *testing.T) {
	m := NewMerger(1, 0)
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	got := m.Merge([]store.ChunkHit{chunkHit("c1", string(long), 0.9)}, nil, 10)
	if len(got) != 1 {
		t.Fatalf("Merge() returned %d results, want 1", len(got))
	}
	// Raw 0.9 (single hit skips min-max) times alpha 1, plus the capped
	// 0.1 length bonus.
	if !almostEqual(got[0].Score, 1.0) {
		t.Errorf("Score = %v, want 1.0", got[0].Score)
	}
}

func TestMergeTruncates(t *testing.T) {
	m := NewMerger(0.7, 0.3)
	hits := []store.ChunkHit{
		chunkHit("c1", "alpha content here", 0.9),
		chunkHit("c2", "bravo content here", 0.7),
		chunkHit("c3", "charlie content ok", 0.5),
		chunkHit("c4", "delta content here", 0.3),
	}
	got := m.Merge(hits, nil, 2)
	if len(got) != 2 {
		t.Fatalf("Merge() returned %d results, want 2", len(got))
	}
}

func TestMergeEmptyChannels(t *testing.T) {
	m := NewMerger(0.7, 0.3)
	if got := m.Merge(nil, nil, 5); len(got) != 0 {
		t.Fatalf("Merge() of empty channels returned %d results, want 0", len(got))
	}
}
