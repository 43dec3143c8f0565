// Package observability defines the tracing, metrics and logging interfaces
// the unillm client emits its structured events through, plus the semantic
// conventions for attribute keys, span names and metric names.
//
// The core never decides where events go. A [Provider] is either configured
// on the client or carried in a [context.Context] ([ContextWithObserver],
// [ObserverFromContext]); the active [Span] travels the same way so that the
// transport can attach HTTP events to the span opened by the facade.
// When neither is present, [Nop] is used.
package observability
