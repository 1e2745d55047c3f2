// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/go-core-stack/core/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/go-core-stack/mcp-gateway/pkg/audit"
	"github.com/go-core-stack/mcp-gateway/pkg/auth"
	"github.com/go-core-stack/mcp-gateway/pkg/metrics"
	"github.com/go-core-stack/mcp-gateway/pkg/ratelimit"
)

// upper bound on an inbound body read for forwarding
const maxRequestBodyBytes = 10 << 20

// Upstream relays an admitted request to the internal platform API
type Upstream interface {
	Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error)
}

// Config wires the gateway collaborators
type Config struct {
	Resolver auth.Resolver
	Policy   *auth.Policy
	Limiter  ratelimit.Limiter

	// client key for rate limiting, defaults to the peer address
	KeyFunc ratelimit.KeyFunc

	// nil until the upstream is wired, requests are then rejected
	// as not ready
	Upstream Upstream

	Audit   *audit.Logger
	Metrics metrics.Recorder
	Logger  *zap.Logger

	// credential asserted to the upstream, optional
	InternalAPIKey string

	MinCredentialLength int
}

// Gateway admits, authorizes and forwards requests to the internal
// platform API
type Gateway struct {
	resolver    auth.Resolver
	policy      *auth.Policy
	limiter     ratelimit.Limiter
	keyFunc     ratelimit.KeyFunc
	upstream    Upstream
	audit       *audit.Logger
	metrics     metrics.Recorder
	logger      *zap.Logger
	internalKey string
	minCredLen  int
}

// New creates the gateway, resolver, policy and limiter are required
func New(cfg Config) (*Gateway, error) {
	if cfg.Resolver == nil || cfg.Policy == nil || cfg.Limiter == nil {
		return nil, coreerrors.Wrapf(coreerrors.InvalidArgument, "resolver, policy and limiter are required")
	}
	g := &Gateway{
		resolver:    cfg.Resolver,
		policy:      cfg.Policy,
		limiter:     cfg.Limiter,
		keyFunc:     cfg.KeyFunc,
		upstream:    cfg.Upstream,
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		internalKey: cfg.InternalAPIKey,
		minCredLen:  cfg.MinCredentialLength,
	}
	if g.keyFunc == nil {
		g.keyFunc = ratelimit.RemoteAddrKey
	}
	if g.audit == nil {
		g.audit = audit.Disabled()
	}
	if g.metrics == nil {
		g.metrics = metrics.Noop{}
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g, nil
}

// getClientIP currently assumes that the gateway may be behind a
// proxy that sets X-Forwarded-For and X-Real-Ip headers, if such
// headers are not present it falls back to RemoteAddr. Only used for
// audit records, never for access decisions.
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first
	xForwardedFor := r.Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		// The header is a comma-separated list: client, proxy1, proxy2, ...
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}
	// Try X-Real-Ip if present
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}
	// Fallback to RemoteAddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// statusRecorder captures the status written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// auditRequests brackets every request with the request_received and
// request_completed audit records, a panic in the wrapped handler is
// answered with 500 and still completes the bracket
func (g *Gateway) auditRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		r.Header.Set(HeaderRequestID, id)
		w.Header().Set(HeaderRequestID, id)
		path := r.URL.Path

		g.audit.RequestReceived(id, r.Method, path, getClientIP(r), r.UserAgent())

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				g.logger.Error("recovered panic while handling request",
					zap.String("request_id", id),
					zap.String("path", path),
					zap.Any("panic", p),
				)
				if rec.status == 0 {
					writeError(rec, newError(KindInternalError, "Internal server error"))
				}
			}
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			g.audit.RequestCompleted(id, status, path, elapsed)
			g.metrics.ObserveRequest(r.Method, status, elapsed)
		}()

		next.ServeHTTP(rec, r)
	})
}

// rateLimit rejects the request once its client exhausted the window,
// it runs ahead of authentication so that invalid credentials count
func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.limiter.Allow(r.Context(), g.keyFunc(r))
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			g.metrics.IncRateLimited()
			e := newError(KindRateLimited, "Rate limit exceeded")
			e.RetryAfter = d.RetryAfter(time.Now())
			writeError(w, e)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate extracts and resolves the bearer credential
func (g *Gateway) authenticate(r *http.Request) (*auth.Identity, *Error) {
	credential, err := auth.ExtractBearer(r.Header.Get("Authorization"), g.minCredLen)
	if err != nil {
		g.metrics.ObserveAuthDecision("unauthenticated")
		msg := strings.TrimPrefix(err.Error(), auth.ErrUnauthenticated.Error()+": ")
		return nil, newError(KindUnauthenticated, msg)
	}

	id, err := g.resolver.Resolve(r.Context(), credential)
	if err != nil {
		if coreerrors.IsNotFound(err) {
			g.metrics.ObserveAuthDecision("unauthenticated")
			return nil, newError(KindUnauthenticated, "Invalid API key")
		}
		g.logger.Error("identity lookup failed", zap.Error(err))
		g.metrics.ObserveAuthDecision("resolver_error")
		return nil, newError(KindUpstreamUnavailable, "identity service unavailable")
	}
	return id, nil
}

// authorize runs the credential and policy checks, returning the
// identity and the admitted tenant
func (g *Gateway) authorize(r *http.Request) (*auth.Identity, string, *Error) {
	id, gwErr := g.authenticate(r)
	if gwErr != nil {
		return nil, "", gwErr
	}

	switch d := g.policy.Evaluate(id, r.Header.Get(HeaderTenantID)).(type) {
	case auth.Admitted:
		g.metrics.ObserveAuthDecision("admitted")
		return id, d.Tenant, nil
	case auth.Denied:
		kind := KindForbidden
		if d.Status == http.StatusBadRequest {
			kind = KindBadRequest
		}
		g.metrics.ObserveAuthDecision(kind.String())
		return nil, "", newError(kind, d.Reason)
	}
	return nil, "", newError(KindInternalError, "Internal server error")
}

// upstreamPath derives the upstream path from the still escaped
// inbound path with the /api prefix removed. Paths carrying dot
// segments, escaped or not, are refused.
func upstreamPath(r *http.Request) (string, bool) {
	p := r.URL.EscapedPath()
	p = strings.TrimPrefix(p, "/api")
	p = strings.TrimLeft(p, "/")
	for _, seg := range strings.Split(p, "/") {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return "", false
		}
		// escaped slashes may hide a dot segment as well
		for _, part := range strings.Split(decoded, "/") {
			if part == "." || part == ".." {
				return "", false
			}
		}
	}
	return p, true
}

// gatewayLocation maps an upstream absolute path redirect back under
// the /api prefix, anything else is relayed as is
func gatewayLocation(loc string) string {
	if strings.HasPrefix(loc, "/") && !strings.HasPrefix(loc, "//") {
		return "/api" + loc
	}
	return loc
}

// handleProxy serves /api/{path}
func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	id, tenant, gwErr := g.authorize(r)
	if gwErr != nil {
		writeError(w, gwErr)
		return
	}

	if g.upstream == nil {
		writeError(w, newError(KindNotReady, "Gateway not ready"))
		return
	}

	path, ok := upstreamPath(r)
	if !ok {
		writeError(w, newError(KindBadRequest, "invalid path"))
		return
	}

	var body []byte
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
		if err != nil {
			writeError(w, newError(KindBadRequest, "failed to read request body"))
			return
		}
	}

	req := &ForwardRequest{
		Method:   r.Method,
		Path:     path,
		RawQuery: r.URL.RawQuery,
		Header:   RewriteHeaders(r.Header, tenant, id, g.internalKey),
		Body:     body,
	}

	start := time.Now()
	resp, err := g.upstream.Forward(r.Context(), req)
	if err != nil {
		var upErr *UpstreamError
		switch {
		case errors.As(err, &upErr):
			g.metrics.ObserveUpstream(upErr.StatusCode, time.Since(start))
			writeError(w, &Error{Kind: KindUpstreamError, Message: "upstream error", Upstream: upErr})
		case errors.Is(err, ErrUpstreamUnavailable):
			g.metrics.ObserveUpstream(0, time.Since(start))
			writeError(w, newError(KindUpstreamUnavailable, "upstream service unavailable"))
		default:
			g.logger.Error("proxy request failed", zap.Error(err))
			writeError(w, newError(KindInternalError, "Internal server error"))
		}
		return
	}
	g.metrics.ObserveUpstream(resp.StatusCode, time.Since(start))

	g.logger.Info("proxied request",
		zap.String("method", r.Method),
		zap.String("path", "/"+req.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("user", id.Email),
		zap.String("tenant", tenant),
	)

	if resp.Location != "" {
		w.Header().Set("Location", gatewayLocation(resp.Location))
	}
	if resp.JSON != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.JSON)
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Raw)
}

type operationRequest struct {
	Operation string         `json:"operation"`
	Details   map[string]any `json:"details,omitempty"`
}

// handleOperation serves POST /audit/operations, recording a domain
// level operation for the authenticated identity and admitted tenant
func (g *Gateway) handleOperation(w http.ResponseWriter, r *http.Request) {
	id, tenant, gwErr := g.authorize(r)
	if gwErr != nil {
		writeError(w, gwErr)
		return
	}

	op := &operationRequest{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(op); err != nil {
		writeError(w, newError(KindBadRequest, "invalid operation payload"))
		return
	}
	op.Operation = strings.TrimSpace(op.Operation)
	if op.Operation == "" {
		writeError(w, newError(KindBadRequest, "operation required"))
		return
	}

	g.audit.Operation(op.Operation, id, tenant, op.Details)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// handleHealth serves the unauthenticated liveness probe
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": SourceName,
	})
}
