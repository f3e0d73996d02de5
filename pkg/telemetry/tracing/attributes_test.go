package tracing

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func findAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRouteAttributes(t *testing.T) {
	attrs := RouteAttributes("background", "claude-3-5-haiku-20241022", true)

	if v, ok := findAttr(attrs, AttrRoute); !ok || v.AsString() != "background" {
		t.Errorf("route attribute = %v, want background", v)
	}
	if v, ok := findAttr(attrs, AttrLogicalModel); !ok || v.AsString() != "claude-3-5-haiku-20241022" {
		t.Errorf("logical model attribute = %v", v)
	}
	if v, ok := findAttr(attrs, AttrStream); !ok || !v.AsBool() {
		t.Errorf("stream attribute = %v, want true", v)
	}
}

func TestAttemptAttributes(t *testing.T) {
	attrs := AttemptAttributes("fireworks", "llama-v3p1-70b-instruct", 2)

	if v, ok := findAttr(attrs, AttrProvider); !ok || v.AsString() != "fireworks" {
		t.Errorf("provider attribute = %v", v)
	}
	if v, ok := findAttr(attrs, AttrModel); !ok || v.AsString() != "llama-v3p1-70b-instruct" {
		t.Errorf("model attribute = %v", v)
	}
	if v, ok := findAttr(attrs, AttrAttempt); !ok || v.AsInt64() != 2 {
		t.Errorf("attempt attribute = %v, want 2", v)
	}
}
