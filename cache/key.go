package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mnemos-ai/recall/layer"
)

// Key derives the cache key for a query within its context.
//
// The query is normalized (trimmed, lowercased) and combined with a
// deterministic serialization of the whitelisted context fields (session
// ID, phase, task, and result limit, in fixed sorted field order), then
// hashed with SHA-256. Context fields outside the whitelist never affect
// the key.
func Key(query string, qctx layer.QueryContext, limit int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	// Field order is fixed and alphabetical; changing it would silently
	// orphan every existing entry.
	serialized := fmt.Sprintf("limit=%d&phase=%s&session=%s&task=%s",
		limit, qctx.Phase, qctx.SessionID, qctx.Task)

	sum := sha256.Sum256([]byte(normalized + "|" + serialized))
	return hex.EncodeToString(sum[:])
}
