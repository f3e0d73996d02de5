package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBodyLimitMiddleware(t *testing.T) {
	var readErr error
	handler := BodyLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	r := httptest.NewRequest("POST", "/v1/messages", strings.NewReader("0123456789abcdef"))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	var mbe *http.MaxBytesError
	if !errors.As(readErr, &mbe) {
		t.Fatalf("read error = %v, want *http.MaxBytesError", readErr)
	}
	if mbe.Limit != 8 {
		t.Errorf("Limit = %d, want 8", mbe.Limit)
	}
}

func TestBodyLimitMiddlewareUnderLimit(t *testing.T) {
	var got []byte
	handler := BodyLimitMiddleware(1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
	}))

	r := httptest.NewRequest("POST", "/v1/messages", strings.NewReader("small"))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if string(got) != "small" {
		t.Errorf("body = %q, want it delivered intact", got)
	}
}

func TestBodyLimitMiddlewareDisabled(t *testing.T) {
	var got []byte
	handler := BodyLimitMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
	}))

	r := httptest.NewRequest("POST", "/v1/messages", strings.NewReader("anything goes"))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if string(got) != "anything goes" {
		t.Errorf("body = %q", got)
	}
}
