// Package cache avoids repeating identical recall work within a time
// window.
//
// Two caches live here. The query cache stores the fully assembled result
// of a recall batch under a hash of the normalized query and the
// cache-relevant context fields; entries expire lazily by TTL and, in the
// in-memory implementation, are evicted least-used-first when the cache is
// full. The session cache maps session IDs to their last-known query
// context under a much shorter TTL, with no capacity bound, since live
// sessions number in the tens rather than the thousands.
//
// Caching is a pure optimization: every failure path fails open. A cache
// that cannot answer behaves exactly like a miss and never surfaces an
// error to the recall flow. This matters mostly for the Redis-backed query
// cache, where network errors are routine.
//
// # Key derivation
//
// Only a fixed whitelist of context fields participates in the cache key:
// session ID, phase, task, and result limit. Everything else in the context
// is deliberately ignored so that semantically irrelevant differences do
// not fragment the cache. See Key.
package cache
