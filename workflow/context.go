package workflow

import "context"

type threadIDKey struct{}

// ContextWithThreadID attaches threadID to ctx. executeNode does this
// before every Node.Run call so node implementations can address the
// artifact store without Node.Run itself carrying a threadID parameter —
// the Node interface stays state-in/Command-out.
func ContextWithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey{}, threadID)
}

// ThreadIDFromContext retrieves the thread id ContextWithThreadID attached,
// for use by node implementations that need to address the artifact store.
func ThreadIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(threadIDKey{}).(string)
	return v, ok
}

type deltaPublisherKey struct{}

// DeltaFunc receives one streamed content fragment.
type DeltaFunc func(text string)

// ContextWithDeltaPublisher attaches fn as the executing node's
// content-delta sink. The scheduler attaches one that publishes a
// content.delta event per fragment, and only on a node's first attempt —
// retries get no publisher, so already-delivered deltas are never
// re-emitted. This sink is the sanctioned path for incremental content;
// everything else a node produces still flows through its Command.
func ContextWithDeltaPublisher(ctx context.Context, fn DeltaFunc) context.Context {
	return context.WithValue(ctx, deltaPublisherKey{}, fn)
}

// DeltaPublisherFromContext retrieves the sink ContextWithDeltaPublisher
// attached. A node whose context carries none simply has nowhere to stream
// to and should fall back to a non-streaming call.
func DeltaPublisherFromContext(ctx context.Context) (DeltaFunc, bool) {
	fn, ok := ctx.Value(deltaPublisherKey{}).(DeltaFunc)
	return fn, ok
}
