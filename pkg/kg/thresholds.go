package kg

import (
	"strings"

	"github.com/quillkb/quill/backend/pkg/common"
)

// Default confidence gates. Storage is permissive so weak signal can
// still be corroborated later; display is stricter so consumers only
// see supported relations.
const (
	DefaultThetaAdd         = 0.55
	DefaultThetaShow        = 0.60
	DefaultMinEvidenceCount = 2
)

// Thresholds holds the confidence gates applied to edges. Nodes are
// never threshold-filtered.
type Thresholds struct {
	ThetaAdd         float64
	ThetaShow        float64
	MinEvidenceCount int
}

// DefaultThresholds returns the standard gate configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ThetaAdd:         DefaultThetaAdd,
		ThetaShow:        DefaultThetaShow,
		MinEvidenceCount: DefaultMinEvidenceCount,
	}
}

// FilterForStorage keeps edges confident enough to persist.
func (t Thresholds) FilterForStorage(edges []common.Edge) []common.Edge {
	out := make([]common.Edge, 0, len(edges))
	for _, edge := range edges {
		if edge.Confidence >= t.ThetaAdd {
			out = append(out, edge)
		}
	}
	return out
}

// FilterForDisplay keeps edges that pass the stricter display gate:
// confidence at or above ThetaShow and at least MinEvidenceCount
// evidence fragments.
func (t Thresholds) FilterForDisplay(edges []common.Edge) []common.Edge {
	out := make([]common.Edge, 0, len(edges))
	for _, edge := range edges {
		if edge.Confidence >= t.ThetaShow && EvidenceCount(edge.Evidence) >= t.MinEvidenceCount {
			out = append(out, edge)
		}
	}
	return out
}

// EvidenceCount reports the number of evidence fragments in a
// semicolon-delimited evidence string. An absent string counts as one
// fragment: the extraction itself.
func EvidenceCount(evidence string) int {
	if strings.TrimSpace(evidence) == "" {
		return 1
	}
	count := 0
	for _, part := range strings.Split(evidence, ";") {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}
