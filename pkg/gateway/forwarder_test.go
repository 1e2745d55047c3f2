// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func Test_ForwarderTracing(t *testing.T) {
	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	f, err := NewForwarder(ForwarderConfig{
		BaseURL:        srv.URL + "/internal/",
		TracerProvider: tp,
		Propagator:     propagation.TraceContext{},
	})
	if err != nil {
		t.Fatalf("failed to create forwarder: %s", err)
	}
	defer f.Close()

	resp, err := f.Forward(context.Background(), &ForwardRequest{Method: http.MethodGet, Path: "modules"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(resp.JSON) != `{"ok":true}` || resp.Raw != nil {
		t.Errorf("unexpected response %+v", resp)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "upstream GET" {
		t.Fatalf("expected a single upstream span, got %d", len(spans))
	}
	if traceparent == "" || !strings.Contains(traceparent, spans[0].SpanContext().TraceID().String()) {
		t.Errorf("expected trace context to be propagated, got %q", traceparent)
	}
}

func Test_ForwarderURLAndBody(t *testing.T) {
	var gotURL, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.RequestURI()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	f, err := NewForwarder(ForwarderConfig{BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("failed to create forwarder: %s", err)
	}
	defer f.Close()

	resp, err := f.Forward(context.Background(), &ForwardRequest{
		Method:   http.MethodPut,
		Path:     "/projects/p1",
		RawQuery: "dry_run=true",
		Body:     []byte(`{"name":"p1"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gotURL != "/v1/projects/p1?dry_run=true" {
		t.Errorf("unexpected upstream url %s", gotURL)
	}
	if gotBody != `{"name":"p1"}` {
		t.Errorf("unexpected upstream body %q", gotBody)
	}
	if resp.JSON != nil || string(resp.Raw) != "plain text" {
		t.Errorf("expected raw response, got %+v", resp)
	}

	_, err = f.Forward(context.Background(), &ForwardRequest{Method: http.MethodGet, Path: "x", Body: []byte("dropped")})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gotBody != "" {
		t.Errorf("expected no body for GET, got %q", gotBody)
	}
}

func Test_ForwarderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"exists"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	f, err := NewForwarder(ForwarderConfig{BaseURL: srv.URL, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("failed to create forwarder: %s", err)
	}
	defer f.Close()

	_, err = f.Forward(context.Background(), &ForwardRequest{Method: http.MethodPost, Path: "modules"})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upErr.StatusCode != http.StatusConflict || string(upErr.Body) != `{"detail":"exists"}` {
		t.Errorf("unexpected upstream error %+v", upErr)
	}
	if logs.FilterMessage("internal api error").Len() != 1 {
		t.Errorf("expected upstream error to be logged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Forward(ctx, &ForwardRequest{Method: http.MethodGet, Path: "modules"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected unavailable for cancelled context, got %v", err)
	}
}

func Test_ForwarderMaxResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f, err := NewForwarder(ForwarderConfig{BaseURL: srv.URL, MaxResponseBytes: 16})
	if err != nil {
		t.Fatalf("failed to create forwarder: %s", err)
	}
	defer f.Close()

	if _, err := f.Forward(context.Background(), &ForwardRequest{Method: http.MethodGet, Path: "big"}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected oversized response to be rejected, got %v", err)
	}
}

func Test_NewForwarderInvalid(t *testing.T) {
	for _, base := range []string{"", "localhost:8000", "://bad"} {
		if _, err := NewForwarder(ForwarderConfig{BaseURL: base}); err == nil {
			t.Errorf("expected error for base url %q", base)
		}
	}

	f, err := NewForwarder(ForwarderConfig{BaseURL: "https://internal.example.com", EnableHTTP2: true})
	if err != nil {
		t.Fatalf("unexpected error enabling http2: %s", err)
	}
	f.Close()
}
