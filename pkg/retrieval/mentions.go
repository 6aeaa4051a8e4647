package retrieval

import (
	"context"
	"strings"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"
)

const (
	mentionNameConfidence  = 1.0
	mentionAliasConfidence = 0.8

	// Very short names match all over the place; skip them.
	minMentionNameLength = 3
)

type mentionPattern struct {
	entityID   string
	needle     string
	confidence float64
}

// linkMentions matches the scope's entities against each chunk's text
// and records a mention link per hit. Matching is lexical: a chunk
// mentions an entity when its name or one of its aliases occurs in the
// content, case-insensitively, and a name match outranks an alias
// match. Returns the number of links recorded; a chunk that fails to
// link is logged and skipped.
func (ix *Indexer) linkMentions(ctx context.Context, scope string, chunks []common.Chunk) (int, error) {
	graph, err := ix.graphStore.FetchScopeGraph(ctx, scope)
	if err != nil {
		return 0, err
	}
	patterns := mentionPatterns(graph.Nodes)
	if len(patterns) == 0 {
		return 0, nil
	}

	linked := 0
	for _, c := range chunks {
		content := strings.ToLower(c.Content)
		best := make(map[string]float64)
		order := make([]string, 0)
		for _, p := range patterns {
			if !strings.Contains(content, p.needle) {
				continue
			}
			if prev, ok := best[p.entityID]; ok {
				if p.confidence > prev {
					best[p.entityID] = p.confidence
				}
				continue
			}
			best[p.entityID] = p.confidence
			order = append(order, p.entityID)
		}
		if len(order) == 0 {
			continue
		}
		mentions := make([]store.ChunkMention, 0, len(order))
		for _, id := range order {
			mentions = append(mentions, store.ChunkMention{EntityID: id, Confidence: best[id]})
		}
		if err := ix.graphStore.LinkChunkMentions(ctx, c, mentions); err != nil {
			logger.Warn("linking chunk mentions failed", "chunk_id", c.ID, "err", err)
			continue
		}
		linked += len(mentions)
	}
	return linked, nil
}

func mentionPatterns(nodes []common.Node) []mentionPattern {
	patterns := make([]mentionPattern, 0, len(nodes))
	for _, node := range nodes {
		if node.ID == "" {
			continue
		}
		if name := strings.ToLower(strings.TrimSpace(node.Name)); len([]rune(name)) >= minMentionNameLength {
			patterns = append(patterns, mentionPattern{
				entityID:   node.ID,
				needle:     name,
				confidence: mentionNameConfidence,
			})
		}
		for _, alias := range node.Aliases {
			if a := strings.ToLower(strings.TrimSpace(alias)); len([]rune(a)) >= minMentionNameLength {
				patterns = append(patterns, mentionPattern{
					entityID:   node.ID,
					needle:     a,
					confidence: mentionAliasConfidence,
				})
			}
		}
	}
	return patterns
}
