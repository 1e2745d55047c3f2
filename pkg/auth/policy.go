// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Denial reasons returned to the caller
const (
	ReasonAdminRequired      = "admin privileges required"
	ReasonAdminNotAuthorized = "admin not authorized"
	ReasonTenantRequired     = "tenant id required"
	ReasonCrossTenant        = "cross-tenant access denied"
)

// Decision is the outcome of evaluating the authorization policy for a
// request, it is either Admitted or Denied
type Decision interface {
	isDecision()
}

// Admitted carries the tenant the request is allowed to act on
type Admitted struct {
	Tenant string
}

// Denied carries the reason and the HTTP status to reject the request with
type Denied struct {
	Reason string
	Status int
}

func (Admitted) isDecision() {}
func (Denied) isDecision()   {}

// Policy authorizes a resolved identity for admin and tenant scoped
// access. The two checks are ordered, tenant scope is only evaluated
// once the admin check has passed.
type Policy struct {
	allowed map[string]struct{}
	logger  *zap.Logger
}

// NewPolicy creates a policy, an empty allowedAdmins list admits any
// identity carrying an admin role
func NewPolicy(allowedAdmins []string, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Policy{
		allowed: make(map[string]struct{}, len(allowedAdmins)),
		logger:  logger,
	}
	for _, email := range allowedAdmins {
		if email = strings.TrimSpace(email); email != "" {
			p.allowed[email] = struct{}{}
		}
	}
	return p
}

// CheckAdmin validates that the identity is an admin and, if an allow
// list is configured, an allowed one. Returns nil when admitted.
func (p *Policy) CheckAdmin(id *Identity) *Denied {
	if !id.IsAdmin() {
		p.logger.Warn("non-admin user attempted access",
			zap.String("user_id", id.ID),
			zap.String("email", id.Email),
		)
		return &Denied{Reason: ReasonAdminRequired, Status: http.StatusForbidden}
	}

	if len(p.allowed) != 0 {
		if _, ok := p.allowed[id.Email]; !ok {
			p.logger.Warn("unauthorized admin attempted access",
				zap.String("user_id", id.ID),
				zap.String("email", id.Email),
			)
			return &Denied{Reason: ReasonAdminNotAuthorized, Status: http.StatusForbidden}
		}
	}

	p.logger.Info("admin access granted", zap.String("email", id.Email))
	return nil
}

// CheckTenant validates that the identity may act on the requested
// tenant, system admins may act on any tenant
func (p *Policy) CheckTenant(id *Identity, requested string) Decision {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		p.logger.Warn("request without tenant id",
			zap.String("email", id.Email),
		)
		return Denied{Reason: ReasonTenantRequired, Status: http.StatusBadRequest}
	}

	if id.HasRole(RoleSystemAdmin) {
		return Admitted{Tenant: requested}
	}

	if id.TenantID != requested {
		p.logger.Warn("cross-tenant access attempt",
			zap.String("email", id.Email),
			zap.String("tenant", requested),
			zap.String("user_tenant", id.TenantID),
		)
		return Denied{Reason: ReasonCrossTenant, Status: http.StatusForbidden}
	}

	return Admitted{Tenant: requested}
}

// Evaluate runs the admin check followed by the tenant check
func (p *Policy) Evaluate(id *Identity, requested string) Decision {
	if denied := p.CheckAdmin(id); denied != nil {
		return *denied
	}
	return p.CheckTenant(id, requested)
}
