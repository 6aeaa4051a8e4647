package graph

import (
	"context"
	"sync"

	"github.com/quillkb/quill/backend/internal/util"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type extractSectionResult struct {
	draft       kg.Draft
	unitsTotal  int
	unitsFailed int
}

// extractSection runs extraction over all units of a section with
// bounded parallelism. A failed unit is retried and then counted, not
// fatal; the section draft is whatever the surviving units produced.
func (c *BuilderClient) extractSection(
	ctx context.Context,
	section common.Section,
	units []common.Unit,
) (extractSectionResult, error) {
	res := extractSectionResult{unitsTotal: len(units)}
	if len(units) == 0 {
		return res, nil
	}

	drafts := make([]*kg.Draft, len(units))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelAiRequests)
	for _, unit := range units {
		u := unit
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				draft, err := util.RetryWithContext(gCtx, c.maxRetries, func(ctx context.Context) (kg.Draft, error) {
					return c.extractFromUnit(ctx, section, u)
				})
				if err != nil {
					logger.Warn("unit extraction failed",
						"unit", u.Index, "chapter", section.Chapter, "subchapter", section.Subchapter, "err", err)
					mu.Lock()
					res.unitsFailed++
					mu.Unlock()
					return nil
				}
				mu.Lock()
				drafts[u.Index] = &draft
				mu.Unlock()
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	// Merge in unit order so downstream first-wins dedup is stable.
	for _, draft := range drafts {
		if draft == nil {
			continue
		}
		res.draft.Nodes = append(res.draft.Nodes, draft.Nodes...)
		res.draft.Edges = append(res.draft.Edges, draft.Edges...)
	}
	return res, nil
}
