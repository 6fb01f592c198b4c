package layer

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Common errors returned by provider registration and lookup.
var (
	// ErrInvalidName is returned when a layer name is empty.
	ErrInvalidName = errors.New("layer: invalid layer name")

	// ErrDuplicate is returned when a provider is registered twice under
	// the same name.
	ErrDuplicate = errors.New("layer: provider already registered")

	// ErrNotFound is returned when no provider is registered under the
	// requested name.
	ErrNotFound = errors.New("layer: provider not found")
)

// Provider answers queries for one backing memory layer.
//
// Query returns records ordered by descending relevance, at most limit of
// them. Implementations may block; they receive the caller's context and
// should return promptly once it is cancelled. A nil result with a nil
// error means the layer had nothing to say.
type Provider interface {
	Query(ctx context.Context, query string, qctx QueryContext, limit int) ([]Record, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, query string, qctx QueryContext, limit int) ([]Record, error)

// Query implements Provider.
func (f Func) Query(ctx context.Context, query string, qctx QueryContext, limit int) ([]Record, error) {
	return f(ctx, query, qctx, limit)
}

// Registry maps layer names to providers. It is populated during engine
// construction and read-only afterwards, which makes it safe for concurrent
// readers without locking.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under the given layer name.
// It returns ErrInvalidName for an empty name and ErrDuplicate if the name
// is already taken.
func (r *Registry) Register(name string, p Provider) error {
	if name == "" {
		return ErrInvalidName
	}
	if p == nil {
		return fmt.Errorf("layer: nil provider for %q", name)
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.providers[name] = p
	return nil
}

// Provider returns the provider registered under name.
func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered layer names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

// offloadResult carries one provider call's outcome across the goroutine
// boundary in OffloadCall.
type offloadResult struct {
	records []Record
	err     error
}

// OffloadCall runs call on its own goroutine and waits for it to finish or
// for ctx to expire, whichever comes first.
//
// This is the blocking-call bridge: a call that ignores its context cannot
// stall the caller, because on ctx expiry OffloadCall returns ctx.Err()
// immediately and abandons the call. Abandonment is best-effort only: the
// goroutine may keep running to completion in the background; its eventual
// result is discarded. Calls that honor ctx return promptly and no
// goroutine is left behind.
//
// A panic inside the call is recovered and returned as an error.
func OffloadCall(ctx context.Context, call func(context.Context) ([]Record, error)) ([]Record, error) {
	// Buffered so the goroutine can always deliver and exit, even after
	// the caller has given up.
	ch := make(chan offloadResult, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- offloadResult{err: fmt.Errorf("layer: provider panic: %v", rec)}
			}
		}()
		records, err := call(ctx)
		ch <- offloadResult{records: records, err: err}
	}()

	select {
	case res := <-ch:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Offload is OffloadCall specialized to a Provider query.
func Offload(ctx context.Context, p Provider, query string, qctx QueryContext, limit int) ([]Record, error) {
	return OffloadCall(ctx, func(ctx context.Context) ([]Record, error) {
		return p.Query(ctx, query, qctx, limit)
	})
}
