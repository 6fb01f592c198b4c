package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnemos-ai/recall/layer"
)

func TestKeyNormalizesQuery(t *testing.T) {
	qctx := layer.QueryContext{SessionID: "sess-1"}
	assert.Equal(t,
		Key("What Is Redis?", qctx, 10),
		Key("  what is redis?  ", qctx, 10),
		"case and surrounding whitespace must not change the key")
}

func TestKeyWhitelistedFields(t *testing.T) {
	base := Key("query", layer.QueryContext{SessionID: "s", Phase: "p", Task: "t"}, 10)

	tests := []struct {
		name  string
		qctx  layer.QueryContext
		limit int
	}{
		{
			name:  "session changes key",
			qctx:  layer.QueryContext{SessionID: "other", Phase: "p", Task: "t"},
			limit: 10,
		},
		{
			name:  "phase changes key",
			qctx:  layer.QueryContext{SessionID: "s", Phase: "other", Task: "t"},
			limit: 10,
		},
		{
			name:  "task changes key",
			qctx:  layer.QueryContext{SessionID: "s", Phase: "p", Task: "other"},
			limit: 10,
		},
		{
			name:  "limit changes key",
			qctx:  layer.QueryContext{SessionID: "s", Phase: "p", Task: "t"},
			limit: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, Key("query", tt.qctx, tt.limit))
		})
	}
}

func TestKeyIgnoresNonWhitelistedFields(t *testing.T) {
	base := Key("query", layer.QueryContext{SessionID: "s"}, 10)

	withExtras := layer.QueryContext{
		SessionID: "s",
		Layers:    []string{layer.Semantic, layer.Graph},
		Extra:     map[string]any{"trace_id": "abc"},
	}
	assert.Equal(t, base, Key("query", withExtras, 10),
		"layers and extra fields must not affect the key")
}

func TestKeyIsHex(t *testing.T) {
	key := Key("query", layer.QueryContext{}, 0)
	assert.Len(t, key, 64)
	assert.Regexp(t, "^[0-9a-f]+$", key)
}
