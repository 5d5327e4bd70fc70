package bus

import "context"

// HeaderPropagator injects cross-process context (trace IDs) into relay headers.
// Implementations mutate headers in place and must be safe for concurrent use.
type HeaderPropagator interface {
	Inject(ctx context.Context, headers map[string]string)
}

// NopHeaderPropagator is a no-op implementation useful for tests or when tracing is disabled.
type NopHeaderPropagator struct{}

func (NopHeaderPropagator) Inject(context.Context, map[string]string) {}

// Invocation describes the handler call in progress. The bus stores it in the context
// handed to middleware and handlers.
type Invocation struct {
	Kind        Kind
	MessageType string
	Handler     string
	Attempt     int // 1-based; always 1 for commands
}

type invocationKey struct{}

// WithInvocation returns a copy of ctx carrying inv.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom extracts the Invocation stored by the bus, if any.
func InvocationFrom(ctx context.Context) (Invocation, bool) {
	if ctx == nil {
		return Invocation{}, false
	}

	inv, ok := ctx.Value(invocationKey{}).(Invocation)

	return inv, ok
}
