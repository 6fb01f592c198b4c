package recall

import (
	"context"
	"strings"

	"github.com/mnemos-ai/recall/executor"
	"github.com/mnemos-ai/recall/layer"
)

// Keyword tables deciding which layers apply to a tier-1 query. Matching
// is substring-based on the lowercased query. Semantic is not listed: it
// is always queried.
var (
	// episodicKeywords signal temporal or error-history questions.
	episodicKeywords = []string{"when", "last", "recent", "error", "failed", "happened"}

	// proceduralKeywords signal how-to questions.
	proceduralKeywords = []string{"how", "do", "build", "implement", "create", "make", "process"}

	// prospectiveKeywords signal task and goal questions.
	prospectiveKeywords = []string{"task", "goal", "todo", "should", "remind", "schedule"}

	// graphKeywords signal relationship and dependency questions.
	graphKeywords = []string{"relate", "depend", "connect", "link", "relationship", "association"}
)

// tier1Layers returns the layers applicable to a query, semantic first and
// the rest in canonical order. Episodic additionally applies whenever the
// agent is debugging, regardless of query wording.
func tier1Layers(query string, qctx layer.QueryContext) []string {
	q := strings.ToLower(query)

	layers := []string{layer.Semantic}
	if strings.EqualFold(qctx.Phase, "debugging") || matchesAny(q, episodicKeywords) {
		layers = append(layers, layer.Episodic)
	}
	if matchesAny(q, proceduralKeywords) {
		layers = append(layers, layer.Procedural)
	}
	if matchesAny(q, prospectiveKeywords) {
		layers = append(layers, layer.Prospective)
	}
	if matchesAny(q, graphKeywords) {
		layers = append(layers, layer.Graph)
	}
	return layers
}

func matchesAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// ExecuteTier1 runs the fast recall pass: it selects the layers the query
// applies to, queries those with registered providers, and returns each
// layer's records keyed by layer name.
//
// Failures never escape as errors. A layer that times out, errors, or
// panics contributes an empty slice, so the result's key set always shows
// which layers were consulted even when every one of them failed. Layers
// selected by keyword but lacking a registered provider are skipped
// entirely and absent from the result.
//
// With useParallel false, or when only one layer applies, the batch runs
// sequentially.
func (e *Engine) ExecuteTier1(ctx context.Context, query string, qctx layer.QueryContext, limit int, useParallel bool) layer.ResultSet {
	selected := tier1Layers(query, qctx)

	tasks := make([]executor.QueryTask, 0, len(selected))
	for _, name := range selected {
		provider, ok := e.registry.Provider(name)
		if !ok {
			continue
		}
		p := provider
		tasks = append(tasks, executor.QueryTask{
			Layer: name,
			Run: func(runCtx context.Context) ([]layer.Record, error) {
				return p.Query(runCtx, query, qctx, limit)
			},
		})
	}
	if len(tasks) == 0 {
		return layer.ResultSet{}
	}

	var batch map[string]executor.ExecutionResult
	if !useParallel || len(tasks) == 1 {
		batch = e.exec.ExecuteSequential(ctx, tasks)
	} else {
		batch = e.exec.Execute(ctx, tasks)
	}

	results := make(layer.ResultSet, len(batch))
	for name, res := range batch {
		if res.Success && res.Records != nil {
			results[name] = res.Records
		} else {
			results[name] = []layer.Record{}
		}
	}
	return results
}
