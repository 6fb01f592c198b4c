// Package layer defines the contract between the recall engine and its
// backing memory layers.
//
// A layer is one independent memory store (episodic, semantic, procedural,
// prospective, or graph) exposed to the engine through the Provider
// interface. The engine holds only a name-to-provider mapping; it has no
// knowledge of provider internals.
//
// # Providers
//
// A provider implements a single method:
//
//	type Provider interface {
//	    Query(ctx context.Context, query string, qctx QueryContext, limit int) ([]Record, error)
//	}
//
// Plain functions can be adapted with Func:
//
//	reg := layer.NewRegistry()
//	reg.Register(layer.Semantic, layer.Func(func(ctx context.Context, q string, qctx layer.QueryContext, limit int) ([]layer.Record, error) {
//	    return store.Search(ctx, q, limit)
//	}))
//
// Providers are registered once at startup; the registry is read-only
// afterwards and safe for concurrent readers.
//
// # Blocking providers
//
// Providers are assumed to block. Offload runs a provider call on its own
// goroutine so a slow call cannot stall the batch that issued it. Providers
// receive the caller's context and should honor cancellation; for providers
// that do not, Offload abandons the call on context expiry and the
// underlying goroutine may run to completion in the background. See Offload
// for the exact semantics.
package layer
