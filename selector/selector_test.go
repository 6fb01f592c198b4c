package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnemos-ai/recall/layer"
	"github.com/mnemos-ai/recall/quality"
)

func TestComplexity(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{
			name:  "short query scores low",
			query: "redis port",
			want:  0.2,
		},
		{
			name:  "empty query scores low",
			query: "",
			want:  0.2,
		},
		{
			name:  "synthesis keyword dominates",
			query: "give me a comprehensive overview of the auth system and its history",
			want:  0.85,
		},
		{
			name:  "synthesis keyword wins even in short query",
			query: "synthesize this",
			want:  0.85,
		},
		{
			name:  "enrichment keyword",
			query: "explain the relationship between the scheduler and the worker pool",
			want:  0.6,
		},
		{
			name:  "fast-path keyword",
			query: "what is the default listen address of the gateway",
			want:  0.25,
		},
		{
			name:  "plain statement gets default",
			query: "details about frobnicating the ingest pipeline quickly",
			want:  0.4,
		},
		{
			name:  "question mark bumps default",
			query: "does the ingest pipeline frobnicate correctly in production?",
			want:  0.45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Complexity(tt.query), 1e-9)
		})
	}
}

func TestComplexityRange(t *testing.T) {
	queries := []string{
		"",
		"x",
		"maybe we could compare this versus that and then rework it if needed?",
		"synthesize a comprehensive strategy",
	}
	for _, q := range queries {
		score := Complexity(q)
		assert.GreaterOrEqual(t, score, 0.0, "query %q", q)
		assert.LessOrEqual(t, score, 1.0, "query %q", q)
	}
}

func TestContextBoost(t *testing.T) {
	tests := []struct {
		name string
		qctx layer.QueryContext
		want float64
	}{
		{
			name: "empty context",
			qctx: layer.QueryContext{},
			want: 0,
		},
		{
			name: "multiple requested layers",
			qctx: layer.QueryContext{Layers: []string{layer.Semantic, layer.Graph}},
			want: 0.15,
		},
		{
			name: "single requested layer does not count",
			qctx: layer.QueryContext{Layers: []string{layer.Semantic}},
			want: 0,
		},
		{
			name: "planning phase",
			qctx: layer.QueryContext{Phase: "planning"},
			want: 0.10,
		},
		{
			name: "debugging phase",
			qctx: layer.QueryContext{Phase: "debugging"},
			want: 0.05,
		},
		{
			name: "session id alone clamps to zero",
			qctx: layer.QueryContext{SessionID: "sess-1"},
			want: 0,
		},
		{
			name: "session id offsets phase boost",
			qctx: layer.QueryContext{Phase: "planning", SessionID: "sess-1"},
			want: 0.05,
		},
		{
			name: "boosts accumulate",
			qctx: layer.QueryContext{
				Phase:  "planning",
				Layers: []string{layer.Semantic, layer.Graph, layer.Episodic},
			},
			want: 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ContextBoost(tt.qctx), 1e-9)
		})
	}
}

func TestSelectDepth(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		qctx     layer.QueryContext
		explicit int
		want     int
	}{
		{
			name:  "short query goes fast path",
			query: "redis port",
			want:  DepthFast,
		},
		{
			name:  "synthesis query goes deep regardless of length",
			query: "synthesize",
			want:  DepthSynthesis,
		},
		{
			name:  "enrichment query gets middle depth",
			query: "explain the relationship between the scheduler and the pool",
			want:  DepthEnriched,
		},
		{
			name:     "explicit depth wins over synthesis keyword",
			query:    "comprehensive strategy for everything",
			explicit: 1,
			want:     1,
		},
		{
			name:     "explicit depth clamped high",
			query:    "redis port",
			explicit: 7,
			want:     3,
		},
		{
			name:     "explicit depth clamped low",
			query:    "redis port",
			explicit: -2,
			want:     1,
		},
		{
			name:  "context boost pushes fast-path query to enriched",
			query: "what is the default listen address of the gateway",
			qctx:  layer.QueryContext{Layers: []string{layer.Semantic, layer.Graph}},
			want:  DepthEnriched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectDepth(tt.query, tt.qctx, tt.explicit))
		})
	}
}

// Spec-level property: short queries without explicit depth always take
// the fast path in an empty context, unless a synthesis keyword applies.
func TestSelectDepthShortQueryProperty(t *testing.T) {
	for _, q := range []string{"", "a", "find x", "deploy status", "0123456789012345678"} {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			assert.Equal(t, DepthFast, SelectDepth(q, layer.QueryContext{}, 0))
		})
	}
}

func TestSelectLayers(t *testing.T) {
	scores := quality.Scores{
		layer.Episodic:    0.9,
		layer.Semantic:    0.8,
		layer.Procedural:  0.6,
		layer.Prospective: 0.3,
		layer.Graph:       0.8,
	}

	t.Run("filters below threshold and sorts descending", func(t *testing.T) {
		names, explanations := SelectLayers("query", scores, layer.QueryContext{}, 0.7)
		assert.Equal(t, []string{layer.Episodic, layer.Graph, layer.Semantic}, names)
		assert.Len(t, explanations, 3)
	})

	t.Run("ties break by name", func(t *testing.T) {
		names, _ := SelectLayers("query", quality.Scores{
			"beta":  0.8,
			"alpha": 0.8,
		}, layer.QueryContext{}, 0.7)
		assert.Equal(t, []string{"alpha", "beta"}, names)
	})

	t.Run("falls back to full set when nothing qualifies", func(t *testing.T) {
		names, explanations := SelectLayers("query", scores, layer.QueryContext{}, 0.95)
		assert.Len(t, names, 5)
		assert.Equal(t, layer.Episodic, names[0], "still sorted by score")
		assert.Contains(t, explanations[0], "no layer met quality threshold")
	})

	t.Run("nil scores use estimated defaults", func(t *testing.T) {
		names, _ := SelectLayers("query", nil, layer.QueryContext{Phase: "debugging"}, 0.8)
		assert.Equal(t, []string{layer.Episodic}, names,
			"debugging boosts episodic past the 0.8 threshold")
	})

	t.Run("non-positive threshold uses default", func(t *testing.T) {
		names, _ := SelectLayers("query", scores, layer.QueryContext{}, 0)
		assert.Equal(t, []string{layer.Episodic, layer.Graph, layer.Semantic}, names)
	})
}

func TestSelectDepthWithQuality(t *testing.T) {
	high := quality.Scores{layer.Semantic: 0.9, layer.Episodic: 0.85}
	low := quality.Scores{layer.Semantic: 0.4, layer.Episodic: 0.3}
	mid := quality.Scores{layer.Semantic: 0.6, layer.Episodic: 0.7}

	tests := []struct {
		name     string
		query    string
		scores   quality.Scores
		explicit int
		want     int
	}{
		{
			name:   "high quality simple query goes fast",
			query:  "redis port",
			scores: high,
			want:   DepthFast,
		},
		{
			name:   "high quality moderate query gets one pass",
			query:  "explain the relationship between scheduler and pool",
			scores: high,
			want:   DepthEnriched,
		},
		{
			name:   "low quality complex query compensates with depth",
			query:  "explain the relationship between scheduler and pool",
			scores: low,
			want:   DepthSynthesis,
		},
		{
			name:   "complex query alone forces synthesis",
			query:  "comprehensive strategy for the migration",
			scores: mid,
			want:   DepthSynthesis,
		},
		{
			name:   "middling everything defaults to enriched",
			query:  "summarize current ingest pipeline configuration values",
			scores: mid,
			want:   DepthEnriched,
		},
		{
			name:     "explicit depth short-circuits",
			query:    "comprehensive strategy",
			scores:   low,
			explicit: 2,
			want:     DepthEnriched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			depth, explanation := SelectDepthWithQuality(tt.query, tt.scores, layer.QueryContext{}, tt.explicit)
			assert.Equal(t, tt.want, depth)
			assert.NotEmpty(t, explanation)
		})
	}
}
