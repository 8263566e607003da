package core

import "context"

// Payload is the argument envelope of a single tool invocation. Values are
// the JSON-compatible scalars, slices and maps produced by decoding a tool
// call; handlers validate shape before touching them.
type Payload map[string]any

// Transport performs one attempt of an operation against a capability
// server. Implementations carry their own endpoint and credential material;
// the dispatch coordinator only hands them the resolved server name, the
// operation and the payload.
//
// A Transport must be safe for concurrent use. It must respect context
// cancellation and deadlines: the dispatch coordinator derives a per-attempt
// context when the policy configures an attempt timeout.
//
// Errors returned by Call are classified via IsTransient to decide whether
// the coordinator may retry the attempt.
type Transport interface {
	Call(ctx context.Context, server, operation string, payload Payload) (any, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, server, operation string, payload Payload) (any, error)

// Call invokes the wrapped function.
func (f TransportFunc) Call(ctx context.Context, server, operation string, payload Payload) (any, error) {
	return f(ctx, server, operation, payload)
}
