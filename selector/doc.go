// Package selector decides how deep and how wide a recall query should go.
//
// Depth (the cascade depth) is the number of sequential enrichment passes
// the orchestrator runs over layer results: 1 is the fast path, 3 is full
// synthesis. Width is the set of backing layers worth querying at all.
//
// Both decisions are pure functions over the query text, the query context,
// and optional per-layer quality scores; the package performs no I/O and
// keeps no state, so decisions are computed fresh on every call and are
// never cached.
package selector
