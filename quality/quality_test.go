package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/recall/layer"
)

func TestScoresAverage(t *testing.T) {
	assert.Equal(t, 0.0, Scores(nil).Average())
	assert.Equal(t, 0.0, Scores{}.Average())
	assert.InDelta(t, 0.5, Scores{"a": 0.4, "b": 0.6}.Average(), 1e-9)
}

func TestScoresClone(t *testing.T) {
	assert.Nil(t, Scores(nil).Clone())

	orig := Scores{layer.Semantic: 0.8}
	clone := orig.Clone()
	clone[layer.Semantic] = 0.1
	assert.Equal(t, 0.8, orig[layer.Semantic])
}

func TestStaticSource(t *testing.T) {
	src := Static{layer.Semantic: 0.9}
	scores, err := src.Scores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.9, scores[layer.Semantic])

	// Mutating the returned map must not affect the source.
	scores[layer.Semantic] = 0.1
	again, err := src.Scores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.9, again[layer.Semantic])
}

func TestEstimateDefaults(t *testing.T) {
	scores := Estimate(layer.QueryContext{})
	require.Len(t, scores, 5)
	assert.InDelta(t, 0.75, scores[layer.Semantic], 1e-9, "semantic gets a slight edge")
	for _, name := range []string{layer.Episodic, layer.Procedural, layer.Prospective, layer.Graph} {
		assert.InDelta(t, 0.70, scores[name], 1e-9, name)
	}
}

func TestEstimateAdjustments(t *testing.T) {
	tests := []struct {
		name  string
		qctx  layer.QueryContext
		layer string
		want  float64
	}{
		{
			name:  "debugging boosts episodic",
			qctx:  layer.QueryContext{Phase: "debugging"},
			layer: layer.Episodic,
			want:  0.85,
		},
		{
			name:  "planning boosts prospective",
			qctx:  layer.QueryContext{Phase: "planning"},
			layer: layer.Prospective,
			want:  0.80,
		},
		{
			name:  "planning boosts semantic too",
			qctx:  layer.QueryContext{Phase: "Planning"},
			layer: layer.Semantic,
			want:  0.80,
		},
		{
			name:  "implementation task boosts procedural",
			qctx:  layer.QueryContext{Task: "implement retry logic"},
			layer: layer.Procedural,
			want:  0.85,
		},
		{
			name:  "dependency task boosts graph",
			qctx:  layer.QueryContext{Task: "map service dependencies"},
			layer: layer.Graph,
			want:  0.80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := Estimate(tt.qctx)
			assert.InDelta(t, tt.want, scores[tt.layer], 1e-9)
		})
	}
}

func TestEstimateRange(t *testing.T) {
	scores := Estimate(layer.QueryContext{
		Phase: "debugging",
		Task:  "implement and integrate the dependency refactor",
	})
	for name, v := range scores {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}
