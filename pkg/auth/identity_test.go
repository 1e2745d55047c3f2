// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"slices"
	"testing"
)

func Test_IdentityRoles(t *testing.T) {
	id := &Identity{ID: "u1", Roles: []string{"viewer", RoleOrgAdmin}, Permissions: []string{"read"}}
	if !id.IsAdmin() {
		t.Errorf("expected org admin to be admin")
	}
	if id.HasRole(RoleSystemAdmin) {
		t.Errorf("unexpected system admin role")
	}
	if !id.HasPermission("read") || id.HasPermission("write") {
		t.Errorf("unexpected permission evaluation")
	}
	if got := id.JoinedRoles(); got != "viewer,org_admin" {
		t.Errorf("got joined roles %q", got)
	}

	plain := &Identity{ID: "u2", Roles: []string{"viewer"}}
	if plain.IsAdmin() {
		t.Errorf("expected viewer not to be admin")
	}
}

func Test_IdentityClone(t *testing.T) {
	id := &Identity{ID: "u1", Roles: []string{RoleOrgAdmin}}
	c := id.Clone()
	c.Roles[0] = "viewer"
	if id.Roles[0] != RoleOrgAdmin {
		t.Errorf("clone shares role slice with original")
	}

	var nilID *Identity
	if nilID.Clone() != nil {
		t.Errorf("expected nil clone of nil identity")
	}
}

func Test_IdentityFromClaims(t *testing.T) {
	claims := map[string]any{
		"sub":   "user-1",
		"email": "admin@example.com",
		"roles": []any{"org_admin"},
		"realm_access": map[string]any{
			"roles": []any{"org_admin", "offline_access"},
		},
		"tenant":      "t-1",
		"permissions": "read,write",
	}

	id := IdentityFromClaims(claims)
	if id.ID != "user-1" || id.Email != "admin@example.com" {
		t.Errorf("unexpected identity %+v", id)
	}
	if !slices.Equal(id.Roles, []string{"org_admin", "offline_access"}) {
		t.Errorf("unexpected roles %v", id.Roles)
	}
	if id.TenantID != "t-1" {
		t.Errorf("expected tenant fallback, got %q", id.TenantID)
	}
	if !slices.Equal(id.Permissions, []string{"read", "write"}) {
		t.Errorf("unexpected permissions %v", id.Permissions)
	}

	claims["tenant_id"] = "t-2"
	if got := IdentityFromClaims(claims).TenantID; got != "t-2" {
		t.Errorf("expected tenant_id to take precedence, got %q", got)
	}
}
