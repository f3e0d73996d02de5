package providers

import (
	"bufio"
	"encoding/json"
	"strings"
)

// SSEEvent is one parsed server-sent event from a proxy response.
type SSEEvent struct {
	Name string
	Data string
}

// ParseSSE splits a complete SSE body into events. Multi-line data
// fields are joined with newlines; comment lines and unknown fields are
// dropped.
func ParseSSE(body string) []SSEEvent {
	var events []SSEEvent
	var cur SSEEvent
	have := false

	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 10<<20)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")

		if line == "" {
			if have {
				events = append(events, cur)
				cur = SSEEvent{}
				have = false
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			cur.Name = value
			have = true
		case "data":
			if cur.Data != "" {
				cur.Data += "\n"
			}
			cur.Data += value
			have = true
		}
	}
	if have {
		events = append(events, cur)
	}
	return events
}

// EventNames lists the event names in arrival order.
func EventNames(events []SSEEvent) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	return names
}

// CollectText concatenates the text fragments carried by
// content_block_delta events, reassembling the streamed message text.
func CollectText(events []SSEEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Name != "content_block_delta" {
			continue
		}
		var payload struct {
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			continue
		}
		if payload.Delta.Type == "text_delta" {
			b.WriteString(payload.Delta.Text)
		}
	}
	return b.String()
}
