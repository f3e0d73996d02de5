package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mercator-hq/saturn/pkg/wire"
)

// WriteJSON writes a JSON response body with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorEnvelope writes an Anthropic error envelope with the status
// code implied by its error type.
func WriteErrorEnvelope(w http.ResponseWriter, errType, message string) error {
	resp := wire.NewErrorResponse(errType, message)
	return WriteJSON(w, wire.StatusForErrorType(errType), resp)
}

// SetSSEHeaders prepares the response for Server-Sent Events streaming.
// Must be called before the first event is written.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// WriteSSEEvent writes one raw SSE event:
//
//	event: <name>
//	data: <data>
//
// followed by a blank line, then flushes so the client sees the event
// immediately.
func WriteSSEEvent(w http.ResponseWriter, name string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write SSE event: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// WriteEvent marshals a wire event payload and writes it as an SSE event.
func WriteEvent(w http.ResponseWriter, ev wire.Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	return WriteSSEEvent(w, ev.Name, data)
}
