package graph

import (
	"context"
	"fmt"

	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// BookResult describes one book-level merge.
type BookResult struct {
	BookID     string           `json:"book_id"`
	Scope      string           `json:"scope"`
	Sections   int              `json:"sections"`
	MergeStats kg.MergeStats    `json:"merge_stats"`
	Stats      store.WriteStats `json:"stats"`
}

// MergeBookGraph folds the given sections' graphs into one book-scoped
// graph. Each merge run gets a fresh book ID, so successive merges of
// the same topic coexist and the newest can be picked by ID. Sections
// whose scope holds no nodes are skipped with a warning.
func (c *BuilderClient) MergeBookGraph(ctx context.Context, topic string, sectionIDs []string) (BookResult, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return BookResult{}, fmt.Errorf("graph: generate run id: %w", err)
	}
	return c.MergeBookGraphRun(ctx, topic, sectionIDs, runID)
}

// MergeBookGraphRun is MergeBookGraph with a caller-supplied run id,
// for callers that mint the book id before the merge executes.
func (c *BuilderClient) MergeBookGraphRun(ctx context.Context, topic string, sectionIDs []string, runID string) (BookResult, error) {
	if len(sectionIDs) == 0 {
		return BookResult{}, fmt.Errorf("graph: no sections to merge")
	}
	if runID == "" {
		return BookResult{}, fmt.Errorf("graph: run id is empty")
	}
	bookID := kg.BookID(topic, runID)
	result := BookResult{
		BookID: bookID,
		Scope:  kg.BookScope(bookID),
	}

	sections := make([]kg.SectionGraph, 0, len(sectionIDs))
	for _, sectionID := range sectionIDs {
		scope := kg.SectionScope(sectionID)
		graph, err := c.store.FetchScopeGraph(ctx, scope)
		if err != nil {
			return result, fmt.Errorf("graph: fetch section %s: %w", sectionID, err)
		}
		if len(graph.Nodes) == 0 {
			logger.Warn("section has no graph, skipping in book merge", "section_id", sectionID)
			continue
		}
		sections = append(sections, kg.SectionGraph{SectionID: sectionID, Graph: graph})
	}
	if len(sections) == 0 {
		return result, fmt.Errorf("graph: none of the %d sections has a stored graph", len(sectionIDs))
	}
	result.Sections = len(sections)

	merged, mergeStats := kg.MergeBook(sections, bookID)
	result.MergeStats = mergeStats

	stats, err := c.persistScopeGraph(ctx, merged)
	result.Stats = stats
	if err != nil {
		return result, err
	}

	logger.Info("book graph merged",
		"book_id", bookID,
		"sections", result.Sections,
		"nodes", stats.NodesWritten,
		"edges", stats.EdgesWritten,
		"node_dedup_ratio", mergeStats.NodeDedupRatio,
		"edge_dedup_ratio", mergeStats.EdgeDedupRatio)
	return result, nil
}
