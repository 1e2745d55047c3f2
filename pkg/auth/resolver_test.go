// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-core-stack/core/errors"
)

const testCredential = "0123456789abcdef0123456789abcdef-admin"

func Test_HashCredential(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashCredential("abc"); got != want {
		t.Errorf("got hash %s, want %s", got, want)
	}
}

func Test_StaticResolver(t *testing.T) {
	r := NewStaticResolver(StaticEntry{
		CredentialHash: HashCredential(testCredential),
		Identity:       Identity{ID: "u1", Email: "admin@example.com", Roles: []string{RoleOrgAdmin}, TenantID: "t-1"},
	})

	id, err := r.Resolve(context.Background(), testCredential)
	if err != nil {
		t.Fatalf("failed to resolve known credential: %s", err)
	}
	if id.ID != "u1" || id.TenantID != "t-1" {
		t.Errorf("unexpected identity %+v", id)
	}

	// returned identity must not alias the table
	id.Roles[0] = "viewer"
	again, _ := r.Resolve(context.Background(), testCredential)
	if again.Roles[0] != RoleOrgAdmin {
		t.Errorf("resolved identity aliases the stored entry")
	}

	_, err = r.Resolve(context.Background(), "unknown-credential-unknown-credential")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	r.Remove(HashCredential(testCredential))
	if r.Len() != 0 {
		t.Errorf("expected empty table after remove, got %d", r.Len())
	}
	if _, err := r.Resolve(context.Background(), testCredential); !errors.IsNotFound(err) {
		t.Errorf("expected not found after remove, got %v", err)
	}
}

func Test_LoadStaticResolver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identities.yaml")
	content := `identities:
  - credentialHash: ` + HashCredential(testCredential) + `
    id: u1
    email: admin@example.com
    roles: [org_admin]
    tenantId: t-1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write identity file: %s", err)
	}

	r, err := LoadStaticResolver(path)
	if err != nil {
		t.Fatalf("failed to load identity file: %s", err)
	}
	id, err := r.Resolve(context.Background(), testCredential)
	if err != nil {
		t.Fatalf("failed to resolve: %s", err)
	}
	if id.Email != "admin@example.com" || id.TenantID != "t-1" || !id.HasRole(RoleOrgAdmin) {
		t.Errorf("unexpected identity %+v", id)
	}
}

func Test_LoadStaticResolverInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identities.yaml")
	if err := os.WriteFile(path, []byte("identities:\n  - id: u1\n"), 0o600); err != nil {
		t.Fatalf("failed to write identity file: %s", err)
	}
	if _, err := LoadStaticResolver(path); err == nil {
		t.Errorf("expected error for entry without credential hash")
	}

	if _, err := LoadStaticResolver(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}

	r, err := LoadStaticResolver("")
	if err != nil {
		t.Fatalf("unexpected error for empty path: %s", err)
	}
	if _, err := r.Resolve(context.Background(), testCredential); !errors.IsNotFound(err) {
		t.Errorf("expected not found from empty table, got %v", err)
	}
}
