package selector

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mnemos-ai/recall/layer"
	"github.com/mnemos-ai/recall/quality"
)

// Cascade depths. Depth 1 is the fast path; depth 3 runs full synthesis.
const (
	DepthFast      = 1
	DepthEnriched  = 2
	DepthSynthesis = 3
)

// DefaultThreshold is the minimum quality score a layer needs to be
// selected when the caller does not supply one.
const DefaultThreshold = 0.7

// shortQueryLen is the length below which a query scores as trivially
// simple, unless a synthesis keyword says otherwise.
const shortQueryLen = 20

// Keyword tables for complexity classification. Matching is substring-based
// on the lowercased query, so phrase entries ("what is") work alongside
// single words.
var (
	synthesisKeywords = []string{
		"synthesize", "synthesis", "strategy", "comprehensive",
		"holistic", "overall", "big picture", "trade-off", "architect",
	}

	enrichmentKeywords = []string{
		"why", "relationship", "related", "explain", "context",
		"because", "reason",
	}

	fastPathKeywords = []string{
		"when", "what is", "who", "find", "get", "show", "list",
		"define",
	}

	conjunctions = []string{" and ", " or ", " but ", " then "}

	conditionalKeywords = []string{
		"if ", " versus ", " vs ", "compare", "better", "worse",
		"instead",
	}

	exploratoryKeywords = []string{
		"maybe", "what if", "perhaps", "wonder", "explore", "could we",
	}
)

// Complexity classifies a query into a score in [0, 1]. Higher means the
// query needs deeper multi-layer synthesis to answer well.
//
// Synthesis keywords dominate every other signal, including query length:
// "synthesize findings" is complex no matter how short it is.
func Complexity(query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))

	if containsAny(q, synthesisKeywords) {
		return 0.85
	}
	if len(q) < shortQueryLen {
		return 0.2
	}
	if containsAny(q, enrichmentKeywords) {
		return 0.6
	}
	if containsAny(q, fastPathKeywords) {
		return 0.25
	}

	score := 0.4
	if strings.Contains(q, "?") {
		score += 0.05
	}
	if countAny(q, conjunctions) >= 2 {
		score += 0.1
	}
	if containsAny(q, conditionalKeywords) {
		score += 0.1
	}
	if containsAny(q, exploratoryKeywords) {
		score += 0.1
	}
	return clamp01(score)
}

// ContextBoost derives a complexity adjustment in [0, 0.3] from the query
// context. Requesting multiple layers or working in a planning phase pushes
// toward deeper search; an active session makes the fast path more reliable
// and pulls the other way.
func ContextBoost(qctx layer.QueryContext) float64 {
	var boost float64
	if len(qctx.Layers) > 1 {
		boost += 0.15
	}
	switch strings.ToLower(qctx.Phase) {
	case "planning", "strategy":
		boost += 0.10
	case "debugging":
		boost += 0.05
	}
	if qctx.SessionID != "" {
		boost -= 0.05
	}
	return math.Max(0, math.Min(0.3, boost))
}

// SelectDepth picks the cascade depth for a query.
//
// An explicit depth (non-zero) is honored after clamping to [1, 3] and
// skips all analysis. Otherwise the combined complexity score maps to a
// depth: at most 0.3 selects 1, at most 0.7 selects 2, anything higher
// selects 3.
func SelectDepth(query string, qctx layer.QueryContext, explicit int) int {
	if explicit != 0 {
		return clampDepth(explicit)
	}
	score := clamp01(Complexity(query) + ContextBoost(qctx))
	switch {
	case score <= 0.3:
		return DepthFast
	case score <= 0.7:
		return DepthEnriched
	default:
		return DepthSynthesis
	}
}

// SelectLayers picks which layers are worth querying, ordered by descending
// quality score, together with a human-readable explanation per decision.
//
// When scores is nil the keyword estimator supplies defaults. Layers at or
// above threshold qualify; if none do, the full scored set is kept rather
// than returning nothing, since an empty recall is worse than a slow one.
// A non-positive threshold means DefaultThreshold.
func SelectLayers(query string, scores quality.Scores, qctx layer.QueryContext, threshold float64) ([]string, []string) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(scores) == 0 {
		scores = quality.Estimate(qctx)
	}

	selected := make([]string, 0, len(scores))
	explanations := make([]string, 0, len(scores)+1)
	for name, score := range scores {
		if score >= threshold {
			selected = append(selected, name)
		}
	}

	if len(selected) == 0 {
		explanations = append(explanations,
			fmt.Sprintf("no layer met quality threshold %.2f; querying all layers", threshold))
		for name := range scores {
			selected = append(selected, name)
		}
	}

	sortByScore(selected, scores)
	for _, name := range selected {
		explanations = append(explanations,
			fmt.Sprintf("%s: quality %.2f (threshold %.2f)", name, scores[name], threshold))
	}
	return selected, explanations
}

// SelectDepthWithQuality combines layer quality with query complexity to
// pick a depth, returning the depth and an explanation.
//
// High-quality layers let shallow passes suffice; unreliable layers are
// compensated with deeper search. An explicit depth (non-zero) always wins.
func SelectDepthWithQuality(query string, scores quality.Scores, qctx layer.QueryContext, explicit int) (int, string) {
	if explicit != 0 {
		d := clampDepth(explicit)
		return d, fmt.Sprintf("explicit depth %d requested", d)
	}
	if len(scores) == 0 {
		scores = quality.Estimate(qctx)
	}

	complexity := clamp01(Complexity(query) + ContextBoost(qctx))
	avg := scores.Average()

	switch {
	case avg >= 0.8 && complexity <= 0.3:
		return DepthFast, fmt.Sprintf("high layer quality (%.2f) and simple query (%.2f): fast path", avg, complexity)
	case avg >= 0.8 && complexity <= 0.7:
		return DepthEnriched, fmt.Sprintf("high layer quality (%.2f), moderate query (%.2f): single enrichment pass", avg, complexity)
	case avg < 0.5 && complexity >= 0.5:
		return DepthSynthesis, fmt.Sprintf("low layer quality (%.2f) with complex query (%.2f): deep search to compensate", avg, complexity)
	case complexity > 0.7:
		return DepthSynthesis, fmt.Sprintf("complex query (%.2f): full synthesis", complexity)
	default:
		return DepthEnriched, fmt.Sprintf("layer quality %.2f, query complexity %.2f: default enrichment", avg, complexity)
	}
}

// sortByScore orders names by descending score, ties broken by name so the
// order is deterministic.
func sortByScore(names []string, scores quality.Scores) {
	sort.Slice(names, func(i, j int) bool {
		si, sj := scores[names[i]], scores[names[j]]
		if si != sj {
			return si > sj
		}
		return names[i] < names[j]
	})
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func countAny(s string, keywords []string) int {
	var n int
	for _, kw := range keywords {
		n += strings.Count(s, kw)
	}
	return n
}

func clampDepth(d int) int {
	if d < DepthFast {
		return DepthFast
	}
	if d > DepthSynthesis {
		return DepthSynthesis
	}
	return d
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
