// Package recall assembles fast answers from a multi-layer agent memory
// system.
//
// Several independent backing stores (episodic, semantic, procedural,
// prospective, and a relationship graph) each answer queries; this
// package decides which of them a query needs, fans the queries out
// concurrently with bounded parallelism and per-layer timeouts, and caches
// assembled results so identical work is not repeated within a time
// window.
//
// The Engine is the single entry point:
//
//	engine, err := recall.New(
//	    recall.WithProvider(layer.Semantic, semanticStore),
//	    recall.WithProvider(layer.Procedural, proceduralStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	results, hit := engine.Recall(ctx, "how do we deploy the indexer", qctx, 10)
//	for name, records := range results {
//	    fmt.Printf("%s contributed %d records\n", name, len(records))
//	}
//
// Individual pieces (tier selection, tier-1 execution, the caches) are
// exposed separately for orchestrators that compose the flow themselves.
//
// Failure philosophy: recall degrades, it does not break. A slow or broken
// layer is reported as an empty contribution, cache problems behave as
// misses, and missing quality signals fall back to estimates. Only an
// unusable configuration (no providers at all) is an error, and it
// surfaces at construction time.
//
// The subpackages are layer (provider contract and types), selector
// (depth and layer-set decisions), executor (bounded parallel fan-out),
// cache (query and session caches, in-memory and Redis), quality (layer
// quality scores, keyword estimates and etcd-published), and config (YAML
// configuration).
package recall
