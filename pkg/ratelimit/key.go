// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the client key a request is rate limited under
type KeyFunc func(r *http.Request) string

// RemoteAddrKey keys requests by the host of the peer address, it
// cannot be spoofed by the client
func RemoteAddrKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedKey keys requests by the first X-Forwarded-For hop, then
// X-Real-Ip, then the peer address. Only meaningful behind a trusted
// proxy that overwrites these headers.
func ForwardedKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xrip != "" {
		return xrip
	}
	return RemoteAddrKey(r)
}
