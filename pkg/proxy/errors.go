package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/wire"
)

// Attempt records one provider try for the exhaustion summary.
type Attempt struct {
	Provider string
	Model    string
	Err      error
}

// AllFailedError is the terminal error after every target in a fallback
// chain failed with a recoverable error.
type AllFailedError struct {
	// LogicalModel is the model whose chain was exhausted.
	LogicalModel string

	// Attempts lists every target tried, in order.
	Attempts []Attempt
}

// Error implements the error interface.
func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all %d provider mappings failed for model: %s", len(e.Attempts), e.LogicalModel)
}

// Summary renders one line per attempt for the client-facing message.
func (e *AllFailedError) Summary() string {
	var b strings.Builder
	b.WriteString(e.Error())
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s/%s: %v", a.Provider, a.Model, a.Err)
	}
	return b.String()
}

// HandleError writes err to the client as an Anthropic error envelope.
//
// Status mapping:
//
//   - parse/validation failures: 400 invalid_request_error
//   - no route configured: 400 routing_error
//   - unknown model, empty mapping list: 404 not_found_error
//   - upstream rejection: the upstream's own status and body, verbatim
//   - exhausted fallback chain: 502 api_error with an attempt summary
//   - anything else: 500 api_error
func HandleError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		writeEnvelope(w, http.StatusBadRequest, wire.ErrTypeInvalidRequest, reqErr.Message)
		return
	}

	if errors.Is(err, routing.ErrNoRouteConfigured) {
		writeEnvelope(w, http.StatusBadRequest, wire.ErrTypeRouting, err.Error())
		return
	}
	if errors.Is(err, routing.ErrUnknownModel) || errors.Is(err, routing.ErrNoProvidersForModel) {
		writeEnvelope(w, http.StatusNotFound, wire.ErrTypeNotFound, err.Error())
		return
	}

	var rejected *providers.RejectedError
	if errors.As(err, &rejected) {
		writeRejected(w, rejected)
		return
	}

	var allFailed *AllFailedError
	if errors.As(err, &allFailed) {
		writeEnvelope(w, http.StatusBadGateway, wire.ErrTypeAPI, allFailed.Summary())
		return
	}

	if providers.IsTransient(err) {
		writeEnvelope(w, http.StatusBadGateway, wire.ErrTypeAPI, err.Error())
		return
	}

	writeEnvelope(w, http.StatusInternalServerError, wire.ErrTypeAPI, err.Error())
}

// writeRejected relays an upstream rejection without rewriting it. The
// upstream already speaks the Anthropic envelope or something close
// enough that the client is better served by the original bytes.
func writeRejected(w http.ResponseWriter, rejected *providers.RejectedError) {
	if rejected.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(rejected.RetryAfter.Seconds())))
	}
	if len(rejected.Body) == 0 {
		errType := wire.ErrorTypeForStatus(rejected.StatusCode)
		writeEnvelope(w, rejected.StatusCode, errType, fmt.Sprintf("provider %s rejected the request", rejected.Provider))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rejected.StatusCode)
	w.Write(rejected.Body)
}

func writeEnvelope(w http.ResponseWriter, statusCode int, errType, message string) {
	WriteJSON(w, statusCode, wire.NewErrorResponse(errType, message))
}

// errorKind names the envelope error type err surfaces as. Used for the
// request metrics status label; must agree with HandleError.
func errorKind(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return wire.ErrTypeInvalidRequest
	}
	if errors.Is(err, routing.ErrNoRouteConfigured) {
		return wire.ErrTypeRouting
	}
	if errors.Is(err, routing.ErrUnknownModel) || errors.Is(err, routing.ErrNoProvidersForModel) {
		return wire.ErrTypeNotFound
	}
	var rejected *providers.RejectedError
	if errors.As(err, &rejected) {
		return wire.ErrorTypeForStatus(rejected.StatusCode)
	}
	return wire.ErrTypeAPI
}
