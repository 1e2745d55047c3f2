// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteOptions carries the surface settings of the router
type RouteOptions struct {
	// allowed CORS origins, "*" allows any
	CorsOrigins []string

	// prometheus exposition handler, /metrics is not served when nil
	Metrics http.Handler
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "Method Not Allowed"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Detail: "Not Found"})
}

// Routes returns the HTTP handler serving the gateway surface
func (g *Gateway) Routes(opts RouteOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(g.auditRequests)
	r.Use(corsMiddleware(opts.CorsOrigins))
	r.MethodNotAllowed(methodNotAllowed)
	r.NotFound(notFound)

	r.Get("/health", g.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(g.rateLimit)
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
			r.MethodFunc(method, "/api/*", g.handleProxy)
		}
		r.Post("/audit/operations", g.handleOperation)
	})

	return r
}
