// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"slices"
	"strings"
)

const (
	// system wide administrator, allowed to act on any tenant
	RoleSystemAdmin = "system_admin"

	// administrator scoped to its own tenant
	RoleOrgAdmin = "org_admin"
)

// Identity is the user record a credential resolves to. It is resolved
// fresh for every request and never persisted by the gateway.
type Identity struct {
	ID          string   `json:"id" yaml:"id" bson:"id"`
	Email       string   `json:"email" yaml:"email" bson:"email"`
	Roles       []string `json:"roles" yaml:"roles" bson:"roles"`
	TenantID    string   `json:"tenant_id" yaml:"tenantId" bson:"tenantId"`
	Permissions []string `json:"permissions" yaml:"permissions" bson:"permissions"`
}

// HasRole reports whether the identity carries the given role
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsAdmin reports whether the identity carries any of the admin roles
func (id *Identity) IsAdmin() bool {
	return id.HasRole(RoleSystemAdmin) || id.HasRole(RoleOrgAdmin)
}

// HasPermission reports whether the identity carries the given permission
func (id *Identity) HasPermission(perm string) bool {
	return slices.Contains(id.Permissions, perm)
}

// JoinedRoles returns the roles as a comma separated list
func (id *Identity) JoinedRoles() string {
	return strings.Join(id.Roles, ",")
}

// Clone returns a deep copy of the identity
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	c := *id
	c.Roles = slices.Clone(id.Roles)
	c.Permissions = slices.Clone(id.Permissions)
	return &c
}

// IdentityFromClaims maps a decoded token claim set to an Identity.
//
// roles are collected from "roles" and keycloak style
// "realm_access.roles", tenant from "tenant_id" falling back to
// "tenant".
func IdentityFromClaims(claims map[string]any) *Identity {
	id := &Identity{
		ID:    claimString(claims, "sub"),
		Email: claimString(claims, "email"),
	}

	id.Roles = claimStrings(claims, "roles")
	if access, ok := claims["realm_access"].(map[string]any); ok {
		for _, role := range claimStrings(access, "roles") {
			if !slices.Contains(id.Roles, role) {
				id.Roles = append(id.Roles, role)
			}
		}
	}

	id.TenantID = claimString(claims, "tenant_id")
	if id.TenantID == "" {
		id.TenantID = claimString(claims, "tenant")
	}

	id.Permissions = claimStrings(claims, "permissions")
	return id
}

func claimString(claims map[string]any, key string) string {
	val, _ := claims[key].(string)
	return val
}

func claimStrings(claims map[string]any, key string) []string {
	switch val := claims[key].(type) {
	case []string:
		return slices.Clone(val)
	case []any:
		list := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				list = append(list, s)
			}
		}
		return list
	case string:
		if val == "" {
			return nil
		}
		return strings.Split(val, ",")
	}
	return nil
}
