// Package handlers contains the HTTP handlers for the proxy's endpoints:
// the two messages endpoints, the admin configuration surface, and the
// health probes. Handlers stay thin; the request pipeline lives in
// pkg/proxy.
package handlers
