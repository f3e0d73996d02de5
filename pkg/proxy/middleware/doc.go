// Package middleware provides HTTP middleware for cross-cutting concerns:
// request ID propagation, request/response logging, CORS, panic recovery,
// and per-request deadlines.
//
// The server wires the chain outermost-first as
//
//	Recovery(Logging(RequestID(CORS(handler))))
//
// so a panic anywhere inside is still logged with the request ID, and the
// completion log line sees the final status code.
//
// The logging wrapper forwards Flush and exposes Unwrap, so SSE streaming
// handlers behind the chain keep their flush-per-event behavior.
package middleware
