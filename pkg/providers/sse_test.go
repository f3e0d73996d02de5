package providers

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type failingReader struct {
	data string
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

func readAllEvents(t *testing.T, input string) []StreamEvent {
	t.Helper()
	reader := NewEventReader(strings.NewReader(input))
	var events []StreamEvent
	for {
		name, data, err := reader.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		events = append(events, StreamEvent{Name: name, Data: append([]byte(nil), data...)})
	}
}

func TestEventReaderNamedEvents(t *testing.T) {
	input := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

	events := readAllEvents(t, input)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Name != "message_start" || string(events[0].Data) != `{"type":"message_start"}` {
		t.Errorf("first event = %q %q", events[0].Name, events[0].Data)
	}
	if events[1].Name != "message_stop" {
		t.Errorf("second event name = %q", events[1].Name)
	}
}

func TestEventReaderUnnamedEvents(t *testing.T) {
	input := "data: {\"choice\":1}\n\ndata: [DONE]\n\n"

	events := readAllEvents(t, input)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Name != "" {
		t.Errorf("unnamed event got name %q", events[0].Name)
	}
	if string(events[1].Data) != "[DONE]" {
		t.Errorf("second data = %q", events[1].Data)
	}
}

func TestEventReaderMultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"

	events := readAllEvents(t, input)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if string(events[0].Data) != "line one\nline two" {
		t.Errorf("data = %q, want newline-joined lines", events[0].Data)
	}
}

func TestEventReaderSkipsCommentsAndCRLF(t *testing.T) {
	input := ": keepalive\r\nevent: ping\r\ndata: {}\r\n\r\n"

	events := readAllEvents(t, input)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Name != "ping" || string(events[0].Data) != "{}" {
		t.Errorf("event = %q %q", events[0].Name, events[0].Data)
	}
}

func TestEventReaderFlushesTruncatedFinalEvent(t *testing.T) {
	// No trailing blank line before the stream closes.
	input := "event: message_delta\ndata: {\"x\":1}"

	reader := NewEventReader(strings.NewReader(input))
	name, data, err := reader.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if name != "message_delta" || string(data) != `{"x":1}` {
		t.Errorf("event = %q %q", name, data)
	}
	if _, _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after flush, got %v", err)
	}
}

func TestEventReaderPropagatesReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	reader := NewEventReader(&failingReader{data: "event: ping\ndata: {}\n\n", err: readErr})

	if _, _, err := reader.Next(); err != nil {
		t.Fatalf("first event should parse, got %v", err)
	}
	if _, _, err := reader.Next(); !errors.Is(err, readErr) {
		t.Errorf("expected read error, got %v", err)
	}
	// Error is sticky.
	if _, _, err := reader.Next(); !errors.Is(err, readErr) {
		t.Errorf("expected sticky error, got %v", err)
	}
}

func TestEventReaderEmptyStream(t *testing.T) {
	reader := NewEventReader(strings.NewReader(""))
	if _, _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
