// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	// DefaultTimeout bounds a single upstream call
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseBytes bounds the upstream body read into memory
	DefaultMaxResponseBytes = 10 << 20

	tracerName = "github.com/go-core-stack/mcp-gateway/pkg/gateway"
)

// ErrUpstreamUnavailable is returned when the upstream could not be
// reached or did not answer within the timeout
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ForwarderConfig configures the upstream client
type ForwarderConfig struct {
	// base URL of the internal platform API
	BaseURL string

	// timeout for a single upstream call, defaults to 30s
	Timeout time.Duration

	// maximum upstream body size, defaults to 10MB
	MaxResponseBytes int64

	// negotiate HTTP/2 with TLS upstreams
	EnableHTTP2 bool

	Logger *zap.Logger

	// optional, defaults to the global providers
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// ForwardRequest is the admitted request as sent upstream
type ForwardRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// ForwardResponse is the upstream answer, JSON is set when the body
// parses as JSON and Raw carries the bytes otherwise
type ForwardResponse struct {
	StatusCode  int
	ContentType string
	// redirect target of a 3xx answer
	Location string
	JSON     json.RawMessage
	Raw      []byte
}

// UpstreamError is an error status returned by the upstream
type UpstreamError struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Forwarder relays admitted requests to the internal platform API
// over a pooled HTTP client. Requests are attempted once.
type Forwarder struct {
	base       string
	client     *http.Client
	transport  *http.Transport
	maxBytes   int64
	logger     *zap.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewForwarder creates a forwarder for the given config
func NewForwarder(cfg ForwarderConfig) (*Forwarder, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	propagator := cfg.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, fmt.Errorf("failed to configure http2 transport: %w", err)
		}
	}

	return &Forwarder{
		base: strings.TrimRight(base.String(), "/"),
		client: &http.Client{
			Transport: tr,
			Timeout:   timeout,
			// redirects are relayed to the caller, never followed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport:  tr,
		maxBytes:   maxBytes,
		logger:     logger,
		tracer:     tp.Tracer(tracerName),
		propagator: propagator,
	}, nil
}

func (f *Forwarder) targetURL(path, rawQuery string) string {
	target := f.base + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// Forward sends the request upstream. The call is bound to ctx so a
// dropped caller cancels it. Error statuses are returned as
// *UpstreamError and transport failures as ErrUpstreamUnavailable.
func (f *Forwarder) Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error) {
	ctx, span := f.tracer.Start(ctx, "upstream "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", "/"+strings.TrimLeft(req.Path, "/")),
		),
	)
	defer span.End()

	var body io.Reader
	if req.Method == http.MethodPost || req.Method == http.MethodPut {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, f.targetURL(req.Path, req.RawQuery), body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}
	f.propagator.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.logger.Error("request error to internal api",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream unavailable")
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream read failed")
		return nil, fmt.Errorf("%w: failed to read response: %s", ErrUpstreamUnavailable, err)
	}
	if int64(len(data)) > f.maxBytes {
		span.SetStatus(codes.Error, "upstream response too large")
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrUpstreamUnavailable, f.maxBytes)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode >= http.StatusBadRequest {
		f.logger.Warn("internal api error",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
		)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, &UpstreamError{
			StatusCode:  resp.StatusCode,
			Body:        data,
			ContentType: contentType,
		}
	}

	out := &ForwardResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Location:    resp.Header.Get("Location"),
	}
	if len(data) != 0 && json.Valid(data) {
		out.JSON = data
	} else {
		out.Raw = data
	}
	return out, nil
}

// Close releases the idle upstream connections
func (f *Forwarder) Close() {
	f.transport.CloseIdleConnections()
}
