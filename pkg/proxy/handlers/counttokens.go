package handlers

import (
	"net/http"

	"mercator-hq/saturn/pkg/proxy"
)

// CountTokensHandler serves POST /v1/messages/count_tokens.
type CountTokensHandler struct {
	dispatcher Dispatcher
}

// NewCountTokensHandler creates the count_tokens endpoint handler.
func NewCountTokensHandler(dispatcher Dispatcher) *CountTokensHandler {
	return &CountTokensHandler{dispatcher: dispatcher}
}

func (h *CountTokensHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	req, err := proxy.ParseCountTokensRequest(r)
	if err != nil {
		proxy.HandleError(w, err)
		return
	}

	h.dispatcher.CountTokens(r.Context(), w, req, proxy.ForcedProvider(r))
}
