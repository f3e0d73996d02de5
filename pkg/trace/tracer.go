// Package trace captures full request and response messages as JSON Lines
// for debugging. Tracing is off by default; when enabled, every proxied
// exchange appends a request entry, then a response or error entry sharing
// the same short trace ID, to a per-day file under the trace directory.
// Writes go through a buffered channel and a single writer goroutine so the
// request path never blocks on disk.
package trace

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/wire"
)

// Entry directions in the JSONL stream.
const (
	dirRequest  = "req"
	dirResponse = "res"
	dirError    = "err"
)

const (
	// entryBuffer is the async write queue length. The queue overflows
	// only when the disk stalls; overflow drops entries rather than
	// backpressuring requests.
	entryBuffer = 256

	// fileDayLayout names one trace file per UTC day. The pruner deletes
	// whole day files past the retention period.
	fileDayLayout = "2006-01-02"
)

type requestEntry struct {
	Timestamp time.Time       `json:"ts"`
	Dir       string          `json:"dir"`
	ID        string          `json:"id"`
	Model     string          `json:"model"`
	Provider  string          `json:"provider"`
	Route     string          `json:"route_type"`
	Stream    bool            `json:"is_stream"`
	System    json.RawMessage `json:"system,omitempty"`
	Messages  json.RawMessage `json:"messages"`
}

type responseEntry struct {
	Timestamp    time.Time       `json:"ts"`
	Dir          string          `json:"dir"`
	ID           string          `json:"id"`
	LatencyMS    int64           `json:"latency_ms"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Content      json.RawMessage `json:"content"`
}

type errorEntry struct {
	Timestamp time.Time `json:"ts"`
	Dir       string    `json:"dir"`
	ID        string    `json:"id"`
	Error     string    `json:"error"`
}

// Tracer appends message traces to day-segmented JSONL files. The zero-value
// methods on a disabled tracer are no-ops, so callers never branch on
// configuration.
type Tracer struct {
	enabled    bool
	omitSystem bool
	dir        string

	lines chan []byte
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	// file and day are owned by the writer goroutine.
	file *os.File
	day  string
}

// New builds a tracer from config. A tracer whose directory cannot be
// created logs the problem and comes up disabled; tracing is a debugging
// aid and never blocks startup.
func New(cfg config.TraceConfig) *Tracer {
	t := &Tracer{omitSystem: cfg.OmitSystemPrompt, dir: cfg.Dir}
	if !cfg.Enabled {
		return t
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		slog.Error("trace directory unavailable, tracing disabled",
			"dir", cfg.Dir,
			"error", err,
		)
		return t
	}

	t.enabled = true
	t.lines = make(chan []byte, entryBuffer)
	t.done = make(chan struct{})
	t.wg.Add(1)
	go t.writer()

	slog.Info("message tracing enabled",
		"dir", cfg.Dir,
		"omit_system_prompt", cfg.OmitSystemPrompt,
	)
	return t
}

// Enabled reports whether traces are being written.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// NewTraceID returns a fresh 8-character trace ID, or the empty string when
// tracing is disabled so callers can skip building trace payloads.
func (t *Tracer) NewTraceID() string {
	if !t.enabled {
		return ""
	}
	return uuid.New().String()[:8]
}

// Request records an inbound request after routing resolved its provider.
// The system prompt is included unless the tracer was configured to omit it.
func (t *Tracer) Request(id string, req *wire.Request, provider, route string) {
	if !t.enabled {
		return
	}

	messages, err := json.Marshal(req.Messages)
	if err != nil {
		return
	}
	var system json.RawMessage
	if !t.omitSystem && req.System != nil {
		system, _ = json.Marshal(req.System)
	}

	t.enqueue(requestEntry{
		Timestamp: time.Now().UTC(),
		Dir:       dirRequest,
		ID:        id,
		Model:     req.Model,
		Provider:  provider,
		Route:     route,
		Stream:    req.Stream,
		System:    system,
		Messages:  messages,
	})
}

// Response records a completed response and its end-to-end latency. For
// streaming requests the response is the reassembled message.
func (t *Tracer) Response(id string, resp *wire.Response, latency time.Duration) {
	if !t.enabled {
		return
	}

	content, err := json.Marshal(resp.Content)
	if err != nil {
		return
	}

	t.enqueue(responseEntry{
		Timestamp:    time.Now().UTC(),
		Dir:          dirResponse,
		ID:           id,
		LatencyMS:    latency.Milliseconds(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Content:      content,
	})
}

// Error records a request that ended in an error.
func (t *Tracer) Error(id string, msg string) {
	if !t.enabled {
		return
	}

	t.enqueue(errorEntry{
		Timestamp: time.Now().UTC(),
		Dir:       dirError,
		ID:        id,
		Error:     msg,
	})
}

// Close drains queued entries and closes the trace file. Entries recorded
// after Close may be dropped.
func (t *Tracer) Close() error {
	if !t.enabled {
		return nil
	}
	t.once.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
	return nil
}

func (t *Tracer) enqueue(entry any) {
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	select {
	case t.lines <- line:
	default:
		slog.Debug("trace buffer full, dropping entry")
	}
}

// writer drains the entry queue into the current day's file, rotating when
// the UTC day changes.
func (t *Tracer) writer() {
	defer t.wg.Done()
	defer t.closeFile()

	for {
		select {
		case line := <-t.lines:
			t.writeLine(line)
		case <-t.done:
			for {
				select {
				case line := <-t.lines:
					t.writeLine(line)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracer) writeLine(line []byte) {
	day := time.Now().UTC().Format(fileDayLayout)
	if t.file == nil || day != t.day {
		if err := t.rotate(day); err != nil {
			slog.Error("trace file unavailable", "error", err)
			return
		}
	}
	if _, err := t.file.Write(append(line, '\n')); err != nil {
		slog.Debug("trace write failed", "error", err)
	}
}

func (t *Tracer) rotate(day string) error {
	t.closeFile()
	name := filepath.Join(t.dir, "messages-"+day+".jsonl")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	t.file = f
	t.day = day
	return nil
}

func (t *Tracer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}
