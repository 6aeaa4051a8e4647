package common

import "time"

// Graph represents a knowledge graph for a single scope, either one
// section of a book or a whole merged book.
//
// A graph contains:
//   - Nodes: entities such as concepts, persons, methods, or terms
//   - Edges: typed, weighted relations between two nodes
//
// Node IDs are deterministic slugs derived from the canonical entity
// name, so the same entity extracted twice resolves to the same node.
type Graph struct {
	Scope string `json:"scope"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node represents an entity in the knowledge graph. Node IDs are a
// function of (canonical name, type, scope), so re-extracting the same
// section resolves to the same node. Scopes is the set of scopes the
// node belongs to: a freshly extracted node carries its section scope,
// and a book merge adds the book scope to the representative node
// without removing the section scopes it came from. Re-indexing a
// scope rewrites edges only; nodes are never deleted by scope.
type Node struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Aliases     []string  `json:"aliases,omitempty"`
	Score       float64   `json:"score"`
	Scopes      []string  `json:"scopes"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Edge represents a directed relation between two nodes. Its RID is a
// content digest over (type, source, target, scope), which makes edge
// writes idempotent within a scope.
//
// Type is always a member of the closed relation type set; when the
// extractor produced a label outside that set, the raw label is kept
// in TypeLabel and Type falls back to RELATED.
type Edge struct {
	RID         string  `json:"rid"`
	Type        string  `json:"type"`
	TypeLabel   string  `json:"type_label,omitempty"`
	SourceID    string  `json:"source_id"`
	TargetID    string  `json:"target_id"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Confidence  float64 `json:"confidence"`
	Evidence    string  `json:"evidence,omitempty"`
	Scope       string  `json:"scope"`
	SrcSection  string  `json:"src_section,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// Section is the input for one section build: the position of the
// section within a book plus its raw text content.
type Section struct {
	Topic      string `json:"topic"`
	Chapter    string `json:"chapter"`
	Subchapter string `json:"subchapter"`
	Content    string `json:"content"`
}

// Unit represents a token-limited segment of a section's content.
// Units are the granularity at which entity extraction runs.
type Unit struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// Chunk represents a segment of a document stored in the vector index.
// Chunks are independent of graph units; they are sized for retrieval
// rather than for extraction. StartChar and EndChar are rune offsets
// of the chunk's content within the source document, so a consumer can
// map a retrieval hit back to its position in the original text.
type Chunk struct {
	ID         string `json:"id"`
	DocID      string `json:"doc_id"`
	Scope      string `json:"scope"`
	Index      int    `json:"index"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
}

// Evidence is one retrieval result, built per query and never
// persisted. Type is the producing channel ("vector", "graph", or
// "hybrid" once a merge collision unions both), Sources lists every
// channel that contributed. The payload kind of graph hits (entity,
// path, subgraph) lives in Metadata.
type Evidence struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Sources  []string       `json:"sources"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GraphStats summarizes the size of a stored scope graph.
type GraphStats struct {
	Scope     string `json:"scope"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}
