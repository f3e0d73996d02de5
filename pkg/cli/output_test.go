package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
)

type stringerDoc struct {
	Name string `json:"name"`
	PID  int    `json:"pid"`
}

func (d stringerDoc) String() string {
	return fmt.Sprintf("%s (PID %d)", d.Name, d.PID)
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}
	buf := &bytes.Buffer{}

	if err := formatter.FormatTo(buf, "running"); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}
	if buf.String() != "running\n" {
		t.Errorf("FormatTo = %q, want %q", buf.String(), "running\n")
	}
}

func TestTextFormatterUsesStringer(t *testing.T) {
	formatter := &TextFormatter{}
	out, err := formatter.Format(stringerDoc{Name: "saturn", PID: 42})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if string(out) != "saturn (PID 42)\n" {
		t.Errorf("Format = %q", string(out))
	}
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{Indent: true}
	buf := &bytes.Buffer{}

	if err := formatter.FormatTo(buf, stringerDoc{Name: "saturn", PID: 42}); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}

	var doc stringerDoc
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.Name != "saturn" || doc.PID != 42 {
		t.Errorf("round trip = %+v", doc)
	}
}

func TestJSONFormatterCompact(t *testing.T) {
	formatter := &JSONFormatter{}
	out, err := formatter.Format(map[string]int{"pid": 1})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if string(out) != `{"pid":1}` {
		t.Errorf("Format = %q", string(out))
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		got := fmt.Sprintf("%T", NewFormatter(tt.format))
		if got != tt.want {
			t.Errorf("NewFormatter(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}
}
