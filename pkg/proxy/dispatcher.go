package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/state"
	"mercator-hq/saturn/pkg/telemetry/metrics"
	"mercator-hq/saturn/pkg/telemetry/tracing"
	"mercator-hq/saturn/pkg/tokens"
	"mercator-hq/saturn/pkg/trace"
	"mercator-hq/saturn/pkg/wire"
)

// countTokensMaxTokens is the placeholder budget attached to count_tokens
// requests so they classify exactly like the message they stand in for.
const countTokensMaxTokens = 1024

// Dispatcher executes the route → resolve → attempt pipeline for the two
// messages endpoints. It owns no HTTP parsing; handlers decode the body
// and hand the wire request over.
//
// Every request works against the snapshot acquired at entry, so a
// concurrent reload never changes routing or providers mid-flight.
type Dispatcher struct {
	cell      *state.Cell
	metrics   *metrics.Collector
	tracer    *trace.Tracer
	routing   *trace.RoutingState
	spans     *tracing.Tracer
	estimator *tokens.Estimator
}

// NewDispatcher builds a dispatcher around the state cell and the
// observability collaborators. All arguments must be non-nil; disabled
// observability is expressed by the collaborators themselves.
func NewDispatcher(cell *state.Cell, collector *metrics.Collector, tracer *trace.Tracer, routingState *trace.RoutingState, spans *tracing.Tracer) *Dispatcher {
	return &Dispatcher{
		cell:      cell,
		metrics:   collector,
		tracer:    tracer,
		routing:   routingState,
		spans:     spans,
		estimator: tokens.NewEstimator(),
	}
}

// Messages serves a parsed /v1/messages request, writing the complete
// response, success or error, to w.
//
// forced carries the X-Provider override; empty means priority order.
func (d *Dispatcher) Messages(ctx context.Context, w http.ResponseWriter, req *wire.Request, forced string) {
	start := time.Now()
	snap := d.cell.Current()

	ctx, span := d.spans.Start(ctx, "saturn.messages")
	defer span.End()

	originalModel := req.Model

	dec, err := snap.Router.Route(req)
	if err != nil {
		d.fail(w, span, "none", "none", start, err)
		return
	}
	route := string(dec.Kind)
	span.SetAttributes(tracing.RouteAttributes(route, dec.LogicalModel, req.Stream)...)

	targets, err := d.resolveTargets(snap, dec.LogicalModel, forced)
	if err != nil {
		d.fail(w, span, route, "none", start, err)
		return
	}

	traceID := d.tracer.NewTraceID()

	var attempts []Attempt
	for i, target := range targets {
		adapter, ok := snap.Registry.Get(target.Provider)
		if !ok {
			err := &providers.NotAvailableError{Provider: target.Provider, Reason: "no adapter in registry"}
			slog.Warn("provider has no adapter, trying next", "provider", target.Provider)
			attempts = append(attempts, Attempt{Provider: target.Provider, Model: target.Model, Err: err})
			continue
		}

		// The adapters rewrite the request in place (model, thinking
		// hygiene), so each attempt works on its own clone.
		attempt := req.Clone()
		attempt.Model = target.Model

		if target.InjectContinuationPrompt && dec.Kind != routing.KindBackground {
			if last := attempt.LastMessage(); shouldInjectContinuation(last) {
				slog.Debug("injecting continuation prompt", "provider", target.Provider, "model", target.Model)
				injectContinuation(last)
			}
		}

		slog.Info("dispatching request",
			"route", route,
			"model", originalModel,
			"provider", target.Provider,
			"upstream_model", target.Model,
			"stream", req.Stream,
			"attempt", i+1,
			"chain", len(targets))

		span.SetAttributes(tracing.AttemptAttributes(target.Provider, target.Model, i+1)...)
		d.tracer.Request(traceID, &attempt, target.Provider, route)

		attemptStart := time.Now()
		var started bool
		if req.Stream {
			started, err = d.streamAttempt(ctx, w, adapter, &attempt)
		} else {
			err = d.sendAttempt(ctx, w, span, adapter, &attempt, originalModel, target, route, traceID, start, i)
		}
		d.metrics.RecordProviderCall(target.Provider, target.Model, time.Since(attemptStart), attemptErrKind(err))

		if err == nil {
			if req.Stream {
				d.routing.Record(target.Model, target.Provider, route)
				d.metrics.RecordRequest(route, target.Provider, "success", time.Since(start))
				d.metrics.RecordFallbackDepth(i)
			}
			return
		}

		d.tracer.Error(traceID, err.Error())

		if started {
			// The client already saw part of this stream; fallback would
			// splice two different completions. Report in-band and stop.
			slog.Error("stream failed after first event", "provider", target.Provider, "error", err)
			tracing.SetError(span, err, wire.ErrTypeAPI)
			d.metrics.RecordRequest(route, target.Provider, wire.ErrTypeAPI, time.Since(start))
			WriteEvent(w, wire.NewErrorEvent(wire.ErrTypeAPI, fmt.Sprintf("upstream stream failed: %v", err)))
			return
		}

		var rejected *providers.RejectedError
		if errors.As(err, &rejected) {
			// The upstream refused outright; every other provider would
			// get the same request, so surface the complaint as-is.
			slog.Warn("provider rejected request", "provider", target.Provider, "status", rejected.StatusCode)
			d.fail(w, span, route, target.Provider, start, err)
			return
		}

		if ctx.Err() != nil {
			slog.Debug("request canceled during dispatch", "provider", target.Provider)
			d.metrics.RecordRequest(route, target.Provider, "canceled", time.Since(start))
			return
		}

		if providers.IsTransient(err) {
			slog.Warn("provider attempt failed, trying next", "provider", target.Provider, "error", err)
			attempts = append(attempts, Attempt{Provider: target.Provider, Model: target.Model, Err: err})
			continue
		}

		d.fail(w, span, route, target.Provider, start, err)
		return
	}

	exhausted := &AllFailedError{LogicalModel: dec.LogicalModel, Attempts: attempts}
	slog.Error("all providers failed", "model", dec.LogicalModel, "attempts", len(attempts))
	d.fail(w, span, route, "none", start, exhausted)
}

// sendAttempt runs one non-streaming try and writes the response on
// success.
func (d *Dispatcher) sendAttempt(ctx context.Context, w http.ResponseWriter, span oteltrace.Span, adapter providers.Provider, req *wire.Request, originalModel string, target routing.Target, route, traceID string, start time.Time, ordinal int) error {
	resp, err := adapter.Send(ctx, req)
	if err != nil {
		return err
	}

	// Clients expect the model name they asked for, not the upstream one.
	resp.Model = originalModel

	latency := time.Since(start)
	d.tracer.Response(traceID, resp, latency)
	d.routing.Record(target.Model, target.Provider, route)
	d.metrics.RecordRequest(route, target.Provider, "success", latency)
	d.metrics.RecordTokens(target.Provider, target.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	d.metrics.RecordFallbackDepth(ordinal)
	tracing.SetUsage(span, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	if resp.StopReason != nil {
		tracing.SetStopReason(span, *resp.StopReason)
	}

	slog.Info("request served",
		"provider", target.Provider,
		"upstream_model", target.Model,
		"latency_ms", latency.Milliseconds(),
		"output_tokens", resp.Usage.OutputTokens)

	// A write failure here means the client hung up; the attempt itself
	// succeeded, so it must not trigger fallback.
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		slog.Debug("client disconnected before response write", "error", err)
	}
	return nil
}

// streamAttempt runs one streaming try, relaying upstream events to the
// client as they arrive. started reports whether any event reached the
// client; once true the dispatcher can no longer fall back and a failure
// must be reported in-band.
func (d *Dispatcher) streamAttempt(ctx context.Context, w http.ResponseWriter, adapter providers.Provider, req *wire.Request) (started bool, err error) {
	stream, err := adapter.SendStream(ctx, req)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			if !started {
				// A stream that closes before its first event never
				// carried a message; let the chain try elsewhere.
				return false, &providers.ProtocolError{Provider: adapter.Name(), Message: "stream ended before first event"}
			}
			return true, nil
		}
		if err != nil {
			return started, err
		}

		if !started {
			SetSSEHeaders(w)
			started = true
			d.metrics.StreamStarted()
			defer d.metrics.StreamEnded()
		}

		if werr := WriteSSEEvent(w, ev.Name, ev.Data); werr != nil {
			// The client hung up; nothing left to deliver.
			slog.Debug("client disconnected mid-stream", "error", werr)
			return true, nil
		}
	}
}

// CountTokens serves a parsed /v1/messages/count_tokens request. The
// request is routed exactly like a message so the count reflects the
// provider that would serve it; adapters without an upstream counting
// endpoint get a local estimate.
func (d *Dispatcher) CountTokens(ctx context.Context, w http.ResponseWriter, req *wire.CountTokensRequest, forced string) {
	snap := d.cell.Current()

	ctx, span := d.spans.Start(ctx, "saturn.count_tokens")
	defer span.End()

	routingView := &wire.Request{
		Model:     req.Model,
		MaxTokens: countTokensMaxTokens,
		Messages:  req.Messages,
		System:    req.System,
		Tools:     req.Tools,
		Thinking:  req.Thinking,
	}

	dec, err := snap.Router.Route(routingView)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		HandleError(w, err)
		return
	}
	route := string(dec.Kind)
	span.SetAttributes(tracing.RouteAttributes(route, dec.LogicalModel, false)...)

	targets, err := d.resolveTargets(snap, dec.LogicalModel, forced)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		HandleError(w, err)
		return
	}

	// Routing may have rewritten the prompt (subagent marker, prompt
	// rules); count what would actually be sent.
	counted := &wire.CountTokensRequest{
		Model:    dec.LogicalModel,
		Messages: routingView.Messages,
		System:   routingView.System,
		Tools:    routingView.Tools,
		Thinking: routingView.Thinking,
	}

	var attempts []Attempt
	for _, target := range targets {
		adapter, ok := snap.Registry.Get(target.Provider)
		if !ok {
			attempts = append(attempts, Attempt{Provider: target.Provider, Model: target.Model, Err: &providers.NotAvailableError{Provider: target.Provider, Reason: "no adapter in registry"}})
			continue
		}

		upstream := *counted
		upstream.Model = target.Model

		resp, err := adapter.CountTokens(ctx, &upstream)
		if errors.Is(err, providers.ErrCountTokensUnsupported) {
			estimate := d.estimator.CountRequest(&upstream)
			slog.Debug("estimated token count locally", "provider", target.Provider, "model", target.Model, "tokens", estimate)
			WriteJSON(w, http.StatusOK, &wire.CountTokensResponse{InputTokens: estimate})
			return
		}
		if err != nil {
			slog.Debug("count_tokens attempt failed, trying next", "provider", target.Provider, "error", err)
			attempts = append(attempts, Attempt{Provider: target.Provider, Model: target.Model, Err: err})
			continue
		}

		WriteJSON(w, http.StatusOK, resp)
		return
	}

	exhausted := &AllFailedError{LogicalModel: dec.LogicalModel, Attempts: attempts}
	tracing.SetError(span, exhausted, wire.ErrTypeAPI)
	HandleError(w, exhausted)
}

// resolveTargets expands the logical model into its fallback chain and
// applies the X-Provider override. The returned slice is never shared
// with the resolver.
func (d *Dispatcher) resolveTargets(snap *state.Snapshot, logicalModel, forced string) ([]routing.Target, error) {
	targets, err := snap.Resolver.Resolve(logicalModel)
	if err != nil {
		return nil, err
	}
	if forced == "" {
		return targets, nil
	}

	var kept []routing.Target
	for _, t := range targets {
		if t.Provider == forced {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, &routing.NoProvidersForModelError{Model: logicalModel + " via provider " + forced}
	}
	slog.Info("forcing provider", "provider", forced, "model", logicalModel)
	return kept, nil
}

// fail records the failure on the span and metrics, then writes the error
// envelope.
func (d *Dispatcher) fail(w http.ResponseWriter, span oteltrace.Span, route, provider string, start time.Time, err error) {
	kind := errorKind(err)
	tracing.SetError(span, err, kind)
	d.metrics.RecordRequest(route, provider, kind, time.Since(start))
	HandleError(w, err)
}

// attemptErrKind labels a provider call outcome for metrics; empty on
// success.
func attemptErrKind(err error) string {
	if err == nil {
		return ""
	}
	return providers.ErrorKind(err)
}
