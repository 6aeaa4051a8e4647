package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillkb/quill/backend/pkg/ai"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/logger"
)

type rerankResponse struct {
	Order []int `json:"order" jsonschema_description:"Zero-based indices of all evidence passages, most relevant first, each index exactly once"`
}

// rerank asks the model to reorder the merged evidence by relevance to
// the query. Reranking is best-effort: on any error or on an invalid
// permutation the pre-rerank order is returned unchanged.
func (r *Retriever) rerank(ctx context.Context, query string, evidence []common.Evidence) []common.Evidence {
	if len(evidence) < 2 {
		return evidence
	}

	prompt := fmt.Sprintf(ai.RerankPrompt, query, formatEvidenceList(evidence))

	var res rerankResponse
	err := r.aiClient.GenerateCompletionWithFormat(
		ctx,
		"rerank_evidence",
		"Reorder evidence passages by relevance to the question.",
		prompt,
		&res,
	)
	if err != nil {
		logger.Warn("reranking failed, keeping merge order", "error", err)
		return evidence
	}
	if !isPermutation(res.Order, len(evidence)) {
		logger.Warn("reranker returned an invalid ordering, keeping merge order", "order", res.Order)
		return evidence
	}

	reordered := make([]common.Evidence, len(evidence))
	for rank, idx := range res.Order {
		reordered[rank] = evidence[idx]
	}
	return reordered
}

func formatEvidenceList(evidence []common.Evidence) string {
	var b strings.Builder
	for i, ev := range evidence {
		fmt.Fprintf(&b, "[%d] %s\n", i, ev.Content)
	}
	return b.String()
}

// isPermutation reports whether order contains every index in [0, n)
// exactly once.
func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}
