// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Kind classifies a failure of the request pipeline
type Kind int

const (
	KindInternalError Kind = iota
	KindUnauthenticated
	KindForbidden
	KindBadRequest
	KindRateLimited
	KindUpstreamError
	KindUpstreamUnavailable
	KindNotReady
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamError:
		return "upstream_error"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindNotReady:
		return "not_ready"
	}
	return "internal_error"
}

// Error is a pipeline failure returned to the caller, Message is
// always safe to expose
type Error struct {
	Kind    Kind
	Message string

	// seconds until the caller may retry, rate limited only
	RetryAfter int

	// response of the upstream, upstream error only
	Upstream *UpstreamError
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// StatusCode returns the HTTP status the error maps to
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamError:
		if e.Upstream != nil && e.Upstream.StatusCode >= 400 {
			return e.Upstream.StatusCode
		}
		return http.StatusBadGateway
	case KindUpstreamUnavailable, KindNotReady:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders the error as a JSON body, upstream JSON error
// bodies are passed through as is while any other upstream body is
// replaced to avoid leaking it
func writeError(w http.ResponseWriter, e *Error) {
	status := e.StatusCode()
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}

	if e.Kind == KindUpstreamError {
		if e.Upstream != nil && len(e.Upstream.Body) != 0 && json.Valid(e.Upstream.Body) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write(e.Upstream.Body)
			return
		}
		writeJSON(w, status, errorBody{Detail: "upstream error"})
		return
	}

	writeJSON(w, status, errorBody{Detail: e.Message})
}
