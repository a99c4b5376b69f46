// Package worker implements the generic worker runtime: one process bound
// to a single queue, blocking-popping jobs, resolving a handler by name
// from a fixed registry, and enforcing per-job wall-clock timeouts.
package worker

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/nuulab/ifcjobs/pkg/codec"
)

// Handler is the type-erased form every registered handler compiles down
// to: decode the raw payload, run the body, return a result value or an
// error. Register builds one of these from a typed handler function so
// callers never have to deal with json.RawMessage directly.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// DecodeError marks a failure that happened while decoding the payload,
// as opposed to one raised by the handler body itself. The runtime
// reports it with error kind "decode" rather than "handler" (spec §7).
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Registry is a worker process's fixed, immutable-after-startup mapping
// from handler_name to executable handler (spec C4).
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates name with fn, typed by the request struct T. fn is
// only invoked once its payload has been strictly decoded into a T;
// unknown fields or type mismatches surface as a DecodeError before fn
// ever runs.
func Register[T any](r *Registry, name string, fn func(ctx context.Context, req T) (any, error)) {
	r.handlers[name] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req T
		if err := codec.StrictDecode(payload, &req); err != nil {
			return nil, &DecodeError{Err: err}
		}
		return fn(ctx, req)
	}
}

// Resolve looks up a handler by name. The second return value is false
// for an unregistered handler_name, which the runtime treats as a
// terminal decode failure for that job (spec §4.4).
func (r *Registry) Resolve(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns every registered handler name, sorted, for diagnostics
// (cmd/worker logs each one at startup).
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
