package retrieval

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/store"
)

// Merger fuses vector and graph hits into one ranked evidence list.
// Alpha weights the vector channel, Beta the graph channel.
type Merger struct {
	alpha float64
	beta  float64
}

// NewMerger creates a merger with the channel weights normalized so
// alpha+beta = 1.
func NewMerger(alpha, beta float64) *Merger {
	total := alpha + beta
	if total > 0 {
		alpha = alpha / total
		beta = beta / total
	}
	return &Merger{alpha: alpha, beta: beta}
}

// Alpha returns the normalized vector channel weight.
func (m *Merger) Alpha() float64 { return m.alpha }

// Beta returns the normalized graph channel weight.
func (m *Merger) Beta() float64 { return m.beta }

// Merge normalizes both channels independently, weights them,
// deduplicates near-identical content across channels, applies the
// corroboration and length bonuses, and returns the top maxResults
// evidence records sorted by descending score.
func (m *Merger) Merge(vectorHits []store.ChunkHit, graphHits []GraphHit, maxResults int) []common.Evidence {
	rescored := make([]GraphHit, len(graphHits))
	for i, hit := range graphHits {
		hit.Score = rescoreGraphHit(hit)
		rescored[i] = hit
	}

	vectorScores := normalizeScores(chunkScores(vectorHits))
	graphScores := normalizeScores(graphHitScores(rescored))

	evidence := make([]common.Evidence, 0, len(vectorHits)+len(rescored))
	for i, hit := range vectorHits {
		evidence = append(evidence, common.Evidence{
			ID:      evidenceID("vector", hit.Chunk.ID),
			Type:    "vector",
			Content: hit.Chunk.Content,
			Score:   vectorScores[i] * m.alpha,
			Sources: []string{"vector"},
			Metadata: map[string]any{
				"chunk_id":     hit.Chunk.ID,
				"doc_id":       hit.Chunk.DocID,
				"vector_score": hit.Score,
			},
		})
	}
	for i, hit := range rescored {
		evidence = append(evidence, common.Evidence{
			ID:      evidenceID("graph", hit.Content),
			Type:    "graph",
			Content: hit.Content,
			Score:   graphScores[i] * m.beta,
			Sources: []string{"graph"},
			Metadata: map[string]any{
				"kind":        hit.Kind,
				"graph_score": hit.Score,
			},
		})
	}

	merged := deduplicate(evidence)
	for i := range merged {
		merged[i].Score += finalBonuses(merged[i])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

// rescoreGraphHit adjusts a graph hit's score by its payload kind
// before normalization: entities keep their base score, paths get a
// length penalty, subgraphs a capped node-count bonus damped by the
// mean edge confidence.
func rescoreGraphHit(hit GraphHit) float64 {
	switch hit.Kind {
	case "path":
		return hit.Score / float64(hit.PathLength+1)
	case "subgraph":
		nodeBonus := float64(hit.NodeCount) * 0.1
		if nodeBonus > 0.3 {
			nodeBonus = 0.3
		}
		avgConfidence := hit.AvgConfidence
		if avgConfidence == 0 {
			avgConfidence = 0.8
		}
		return hit.Score * (1 + nodeBonus) * avgConfidence
	default:
		return hit.Score
	}
}

// normalizeScores min-max normalizes within one channel. A zero range
// leaves the scores untouched so a single hit keeps its weight.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	scoreRange := maxScore - minScore
	if scoreRange == 0 {
		return scores
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = (s - minScore) / scoreRange
	}
	return out
}

// deduplicate collapses evidence with near-identical content across
// channels. The survivor keeps the higher-scoring record's content,
// combines scores as (primary + 0.5*secondary)/1.5 and unions the
// source lists; cross-channel survivors become "hybrid".
func deduplicate(evidence []common.Evidence) []common.Evidence {
	keys := make([]string, 0, len(evidence))
	byKey := make(map[string]common.Evidence, len(evidence))
	for _, ev := range evidence {
		key := contentKey(ev.Content)
		existing, ok := byKey[key]
		if !ok {
			keys = append(keys, key)
			byKey[key] = ev
			continue
		}
		byKey[key] = mergeCollision(existing, ev)
	}

	out := make([]common.Evidence, 0, len(keys))
	for _, key := range keys {
		out = append(out, byKey[key])
	}
	return out
}

func mergeCollision(a, b common.Evidence) common.Evidence {
	primary, secondary := a, b
	if b.Score > a.Score {
		primary, secondary = b, a
	}

	merged := primary
	merged.Score = (primary.Score + secondary.Score*0.5) / 1.5
	merged.Sources = unionSources(primary.Sources, secondary.Sources)
	if len(merged.Sources) > 1 {
		merged.Type = "hybrid"
	}
	if merged.Metadata == nil && secondary.Metadata != nil {
		merged.Metadata = secondary.Metadata
	}
	return merged
}

func unionSources(a, b []string) []string {
	return store.DedupeStrings(append(append([]string{}, a...), b...))
}

// finalBonuses rewards multi-channel corroboration and, mildly,
// content substance.
func finalBonuses(ev common.Evidence) float64 {
	bonus := 0.0
	if len(ev.Sources) > 1 {
		bonus += 0.1
	}
	lengthBonus := float64(len(ev.Content)) / 1000
	if lengthBonus > 0.1 {
		lengthBonus = 0.1
	}
	return bonus + lengthBonus
}

func evidenceID(prefix, content string) string {
	sum := md5.Sum([]byte(content))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(sum[:])[:8])
}

// contentKey is the dedup key: content stripped to lowercase
// alphanumerics, hashed.
func contentKey(content string) string {
	var b strings.Builder
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

func chunkScores(hits []store.ChunkHit) []float64 {
	scores := make([]float64, len(hits))
	for i, hit := range hits {
		scores[i] = hit.Score
	}
	return scores
}

func graphHitScores(hits []GraphHit) []float64 {
	scores := make([]float64, len(hits))
	for i, hit := range hits {
		scores[i] = hit.Score
	}
	return scores
}
