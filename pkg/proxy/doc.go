// Package proxy implements the request pipeline behind /v1/messages.
//
// # Request Flow
//
// Every request moves through the same stages:
//
//  1. Acquire the current state snapshot; the request uses that snapshot
//     for its whole lifetime, so a concurrent reload never changes routing
//     or providers mid-flight
//  2. Parse the body as an Anthropic Messages request (10MB cap)
//  3. Route: classify into a category and rewrite to a logical model
//  4. Resolve: expand the logical model into an ordered provider chain
//  5. Dispatch: try each (provider, model) target in order until one
//     succeeds or the chain is exhausted
//
// # Fallback Discipline
//
// A transient failure (network, 5xx, missing adapter) moves to the next
// target. An upstream rejection (4xx) stops the chain and the upstream
// body is returned verbatim. For streaming requests fallback is only
// possible before the first event reaches the client; after that an
// upstream failure is reported in-band as a terminal SSE error event.
//
// # Errors
//
// Every error leaves this package as an Anthropic error envelope:
//
//	{"type": "error", "error": {"type": "...", "message": "..."}}
//
// HandleError maps the pipeline's error types to envelope type and HTTP
// status; upstream rejections keep their original status and body.
package proxy
