// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gateway

import (
	"net/http"
	"strings"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
)

const (
	// marker identifying the gateway as the calling layer
	SourceName = "mcp-gateway"

	HeaderTenantID       = "X-Tenant-Id"
	HeaderUserID         = "X-Gateway-User-Id"
	HeaderUserEmail      = "X-Gateway-User-Email"
	HeaderUserRoles      = "X-Gateway-User-Roles"
	HeaderGatewayTenant  = "X-Gateway-Tenant-Id"
	HeaderGatewaySource  = "X-Gateway-Source"
	HeaderInternalAPIKey = "X-Internal-Api-Key"
	HeaderRequestID      = "X-Request-Id"
)

// headers meaningful only for a single transport hop
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// RewriteHeaders returns the headers to send upstream for an admitted
// request. The inbound headers are left untouched, hop-by-hop headers
// and the caller's Authorization are dropped and the gateway asserted
// identity headers are set, overriding anything the caller sent.
func RewriteHeaders(in http.Header, tenant string, id *auth.Identity, internalKey string) http.Header {
	out := in.Clone()
	if out == nil {
		out = http.Header{}
	}

	// headers listed in Connection are hop-by-hop as well
	for _, val := range in.Values("Connection") {
		for _, name := range strings.Split(val, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		out.Del(name)
	}

	out.Del("Authorization")

	// the transport negotiates compression and decodes the body itself
	out.Del("Accept-Encoding")

	if out.Get("X-Forwarded-For") == "" {
		out.Set("X-Forwarded-For", "unknown")
	}
	out.Set("X-Forwarded-Proto", "https")

	userID, email, roles := "unknown", "unknown", ""
	if id != nil {
		if id.ID != "" {
			userID = id.ID
		}
		if id.Email != "" {
			email = id.Email
		}
		roles = id.JoinedRoles()
	}
	out.Set(HeaderUserID, userID)
	out.Set(HeaderUserEmail, email)
	out.Set(HeaderUserRoles, roles)
	out.Set(HeaderGatewayTenant, tenant)
	out.Set(HeaderGatewaySource, SourceName)

	if internalKey != "" {
		out.Set(HeaderInternalAPIKey, internalKey)
	} else {
		// never let the caller assert the internal credential
		out.Del(HeaderInternalAPIKey)
	}

	return out
}
