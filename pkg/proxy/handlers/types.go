package handlers

import (
	"context"
	"net/http"

	"mercator-hq/saturn/pkg/wire"
)

// Dispatcher is the request pipeline the message handlers delegate to.
// Implemented by proxy.Dispatcher; the interface keeps handlers testable
// without live upstreams.
type Dispatcher interface {
	// Messages serves a parsed /v1/messages request, writing the complete
	// response to w.
	Messages(ctx context.Context, w http.ResponseWriter, req *wire.Request, forced string)

	// CountTokens serves a parsed /v1/messages/count_tokens request.
	CountTokens(ctx context.Context, w http.ResponseWriter, req *wire.CountTokensRequest, forced string)
}
