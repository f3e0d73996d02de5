package providers

import (
	"bufio"
	"bytes"
	"io"
)

// maxEventSize caps a single SSE line. Tool inputs can carry whole files,
// so this is generous.
const maxEventSize = 10 << 20

// EventReader incrementally parses a server-sent event stream into
// (event name, data) pairs. Multi-line data fields are joined with newlines
// per the SSE wire format; comment and id/retry fields are ignored.
type EventReader struct {
	scanner *bufio.Scanner
	err     error
}

// NewEventReader wraps an upstream response body.
func NewEventReader(r io.Reader) *EventReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxEventSize)
	return &EventReader{scanner: sc}
}

// Next returns the next event. The name is empty when the upstream sent no
// event field (OpenAI-style streams). io.EOF signals an exhausted stream;
// an event accumulated when the upstream closed without a trailing blank
// line is still handed over before EOF.
func (r *EventReader) Next() (string, []byte, error) {
	if r.err != nil {
		return "", nil, r.err
	}

	var name string
	var data []byte
	have := false

	for r.scanner.Scan() {
		line := bytes.TrimSuffix(r.scanner.Bytes(), []byte("\r"))

		if len(line) == 0 {
			if have {
				return name, data, nil
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		i := bytes.IndexByte(line, ':')
		var field, value []byte
		if i < 0 {
			field = line
		} else {
			field, value = line[:i], line[i+1:]
			// The wire format strips exactly one leading space.
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
		}

		switch string(field) {
		case "event":
			name = string(value)
			have = true
		case "data":
			if data != nil {
				data = append(data, '\n')
			}
			data = append(data, value...)
			have = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		r.err = err
		return "", nil, err
	}
	r.err = io.EOF
	if have {
		return name, data, nil
	}
	return "", nil, io.EOF
}
