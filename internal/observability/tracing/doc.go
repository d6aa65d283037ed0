// Package tracing provides OpenTelemetry span instrumentation for Agent
// Runtime invocations.
//
// Every call into an LLM provider (Anthropic or an OpenAI-compatible
// endpoint) is wrapped in a span carrying scout name, provider, model, and
// scout kind, so a single run's chain of invocations can be reconstructed
// from a trace backend.
//
// Example usage:
//
//	import "scoutengine/internal/observability/tracing"
//
//	func invoke(ctx context.Context) {
//	    ctx, span := tracing.StartInvocation(ctx, tracing.InvocationAttrs{
//	        ScoutName: "hn-scout", Provider: "anthropic", Model: "claude-sonnet", Kind: "rss",
//	    })
//	    err := callProvider(ctx)
//	    tracing.EndInvocation(span, err)
//	}
package tracing
