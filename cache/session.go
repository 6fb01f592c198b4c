package cache

import (
	"sync"
	"time"

	"github.com/mnemos-ai/recall/layer"
)

// DefaultSessionTTL is the session context lifetime. It is deliberately
// short: session context only needs to survive between temporally close
// recall calls, and stale context is worse than a re-fetch.
const DefaultSessionTTL = 30 * time.Second

// sessionEntry is one cached session context.
type sessionEntry struct {
	qctx      layer.QueryContext
	createdAt time.Time
}

// Session caches last-known query context per session ID, avoiding
// repeated context lookups across temporally close calls.
//
// Unlike the query cache there is no capacity bound or eviction policy:
// concurrent sessions stay few, and entries age out by TTL on read or via
// CleanupExpired.
//
// Thread-safety: all methods are safe for concurrent use.
type Session struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]sessionEntry
}

// NewSession creates a session context cache. A non-positive ttl means
// DefaultSessionTTL.
func NewSession(ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Session{
		ttl:     ttl,
		entries: make(map[string]sessionEntry),
	}
}

// Get returns the cached context for the session, or false if absent or
// expired. Expiry is checked before every read.
func (s *Session) Get(sessionID string) (layer.QueryContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return layer.QueryContext{}, false
	}
	if time.Since(e.createdAt) > s.ttl {
		delete(s.entries, sessionID)
		return layer.QueryContext{}, false
	}
	return e.qctx.Clone(), true
}

// Put stores the session's context, replacing any previous entry and
// restarting its TTL.
func (s *Session) Put(sessionID string, qctx layer.QueryContext) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = sessionEntry{
		qctx:      qctx.Clone(),
		createdAt: time.Now(),
	}
}

// Invalidate removes one session's entry if present.
func (s *Session) Invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// Clear removes every entry. Clearing an empty cache is a no-op.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]sessionEntry)
}

// CleanupExpired removes expired entries eagerly and reports how many were
// removed.
func (s *Session) CleanupExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, e := range s.entries {
		if now.Sub(e.createdAt) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the current entry count, expired entries included.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
