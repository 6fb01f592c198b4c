package quality

import (
	"context"
	"math"
	"strings"

	"github.com/mnemos-ai/recall/layer"
)

// Scores maps layer names to quality scores in [0, 1].
type Scores map[string]float64

// Average returns the mean score, or 0 for an empty map.
func (s Scores) Average() float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// Clone returns a copy of the score map.
func (s Scores) Clone() Scores {
	if s == nil {
		return nil
	}
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Source provides live quality scores. Implemented by EtcdStore and by the
// host's meta-quality collaborator.
type Source interface {
	// Scores returns the current per-layer scores. A nil map means no
	// signal is available and callers should fall back to Estimate.
	Scores(ctx context.Context) (Scores, error)
}

// Static adapts a fixed score map to the Source interface.
type Static Scores

// Scores implements Source.
func (s Static) Scores(context.Context) (Scores, error) {
	return Scores(s).Clone(), nil
}

// Baseline scores used by Estimate before keyword adjustments. Semantic
// gets a slight edge: it is the always-queried layer and historically the
// most precise.
const (
	baseScore     = 0.70
	semanticScore = 0.75
)

// Estimate derives default quality scores from the query context when no
// live signal is available. The heuristic boosts layers whose specialty
// matches the current phase or task: procedural for implementation work,
// episodic for debugging, prospective for planning, graph for dependency
// analysis.
func Estimate(qctx layer.QueryContext) Scores {
	scores := Scores{
		layer.Episodic:    baseScore,
		layer.Semantic:    semanticScore,
		layer.Procedural:  baseScore,
		layer.Prospective: baseScore,
		layer.Graph:       baseScore,
	}

	phase := strings.ToLower(qctx.Phase)
	task := strings.ToLower(qctx.Task)

	switch {
	case phase == "debugging":
		scores[layer.Episodic] += 0.15
	case phase == "planning" || phase == "strategy":
		scores[layer.Prospective] += 0.10
		scores[layer.Semantic] += 0.05
	}

	if containsAny(task, "implement", "build", "create", "refactor") {
		scores[layer.Procedural] += 0.15
	}
	if containsAny(task, "depend", "relation", "architecture", "integrate") {
		scores[layer.Graph] += 0.10
	}

	for name, v := range scores {
		scores[name] = clamp01(v)
	}
	return scores
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
