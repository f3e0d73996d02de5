package handlers

import (
	"net/http"

	"mercator-hq/saturn/pkg/proxy"
	"mercator-hq/saturn/pkg/wire"
)

// MessagesHandler serves POST /v1/messages.
type MessagesHandler struct {
	dispatcher Dispatcher
}

// NewMessagesHandler creates the messages endpoint handler.
func NewMessagesHandler(dispatcher Dispatcher) *MessagesHandler {
	return &MessagesHandler{dispatcher: dispatcher}
}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	req, err := proxy.ParseMessagesRequest(r)
	if err != nil {
		proxy.HandleError(w, err)
		return
	}

	h.dispatcher.Messages(r.Context(), w, req, proxy.ForcedProvider(r))
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", http.MethodPost)
	proxy.WriteJSON(w, http.StatusMethodNotAllowed,
		wire.NewErrorResponse(wire.ErrTypeInvalidRequest, "method not allowed"))
}
