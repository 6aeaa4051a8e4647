package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/quillkb/quill/backend/internal/util"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

// BuildResult describes one section build.
type BuildResult struct {
	SectionID   string           `json:"section_id"`
	Scope       string           `json:"scope"`
	ContentHash string           `json:"content_hash"`
	UnitsTotal  int              `json:"units_total"`
	UnitsFailed int              `json:"units_failed"`
	Stats       store.WriteStats `json:"stats"`
}

// BatchResult collects the outcome of a multi-section build. Failed
// sections are reported alongside the successful subset; one
// section's failure never aborts the batch.
type BatchResult struct {
	Results []BuildResult     `json:"results"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// BuildSectionGraph runs the full pipeline for one section: split
// into units, extract, normalize, assign deterministic IDs, filter by
// the storage threshold, and persist under the section's scope with a
// delete-edges-then-rewrite cycle. Running it twice on identical
// input leaves the stored graph unchanged.
//
// Concurrent builds of the same section are not safe; callers
// serialize per section.
func (c *BuilderClient) BuildSectionGraph(ctx context.Context, section common.Section) (BuildResult, error) {
	sectionID := kg.SectionID(section.Topic, section.Chapter, section.Subchapter)
	scope := kg.SectionScope(sectionID)
	result := BuildResult{
		SectionID:   sectionID,
		Scope:       scope,
		ContentHash: kg.ContentHash(section.Content),
	}

	units := c.splitIntoUnits(section.Content)
	if len(units) == 0 {
		return result, fmt.Errorf("graph: section %s has no extractable content", sectionID)
	}

	extracted, err := c.extractSection(ctx, section, units)
	result.UnitsTotal = extracted.unitsTotal
	result.UnitsFailed = extracted.unitsFailed
	if err != nil {
		return result, err
	}
	if extracted.unitsFailed == extracted.unitsTotal {
		return result, fmt.Errorf("graph: extraction failed for all %d units of section %s", extracted.unitsTotal, sectionID)
	}

	graph := kg.AssignIDs(kg.Normalize(extracted.draft), scope, sectionID)
	graph.Edges = c.thresholds.FilterForStorage(graph.Edges)

	stats, err := c.persistScopeGraph(ctx, graph)
	result.Stats = stats
	if err != nil {
		return result, err
	}

	logger.Info("section graph built",
		"section_id", sectionID,
		"units", result.UnitsTotal,
		"units_failed", result.UnitsFailed,
		"nodes", stats.NodesWritten,
		"edges", stats.EdgesWritten,
		"errors", stats.Errors)
	return result, nil
}

// persistScopeGraph writes a graph under its scope: nodes first so
// edge endpoints resolve, then the scope's old edges are dropped and
// the new set written. Store calls are retried on transient failure.
func (c *BuilderClient) persistScopeGraph(ctx context.Context, graph common.Graph) (store.WriteStats, error) {
	stats := store.WriteStats{}

	nodeStats, err := util.RetryWithContext(ctx, c.maxRetries, func(ctx context.Context) (store.WriteStats, error) {
		return c.store.UpsertNodes(ctx, graph.Nodes)
	})
	stats.Add(nodeStats)
	if err != nil {
		return stats, fmt.Errorf("graph: upsert nodes for scope %s: %w", graph.Scope, err)
	}

	err = util.RetryErrWithContext(ctx, c.maxRetries, func(ctx context.Context) error {
		_, err := c.store.DeleteEdgesByScope(ctx, graph.Scope)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("graph: delete edges for scope %s: %w", graph.Scope, err)
	}

	edgeStats, err := util.RetryWithContext(ctx, c.maxRetries, func(ctx context.Context) (store.WriteStats, error) {
		return c.store.UpsertEdges(ctx, graph.Edges)
	})
	stats.Add(edgeStats)
	if err != nil {
		return stats, fmt.Errorf("graph: upsert edges for scope %s: %w", graph.Scope, err)
	}
	return stats, nil
}

// BuildSections builds many sections with bounded parallelism. All
// sections are submitted; results and per-section errors are
// collected as they complete.
func (c *BuilderClient) BuildSections(ctx context.Context, sections []common.Section) BatchResult {
	batch := BatchResult{}
	if len(sections) == 0 {
		return batch
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelSections)
	for _, section := range sections {
		s := section
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
			}
			result, err := c.BuildSectionGraph(gCtx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if batch.Errors == nil {
					batch.Errors = make(map[string]string)
				}
				batch.Errors[result.SectionID] = err.Error()
				return nil
			}
			batch.Results = append(batch.Results, result)
			return nil
		})
	}
	_ = g.Wait()
	return batch
}

// FetchDisplayGraph returns a scope's graph with the stricter display
// threshold applied to its edges.
func (c *BuilderClient) FetchDisplayGraph(ctx context.Context, scope string) (common.Graph, error) {
	graph, err := c.store.FetchScopeGraph(ctx, scope)
	if err != nil {
		return common.Graph{}, err
	}
	graph.Edges = c.thresholds.FilterForDisplay(graph.Edges)
	return graph, nil
}
