// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
	"github.com/go-core-stack/mcp-gateway/pkg/table"
)

func Test_CacheReconcilerInvalidates(t *testing.T) {
	backend := auth.NewStaticResolver(
		auth.StaticEntry{CredentialHash: auth.HashCredential("credential-one"), Identity: auth.Identity{ID: "u1", TenantID: "t-1"}},
		auth.StaticEntry{CredentialHash: auth.HashCredential("credential-two"), Identity: auth.Identity{ID: "u2", TenantID: "t-2"}},
	)
	cache := auth.NewCachingResolver(backend, time.Minute)
	for _, cred := range []string{"credential-one", "credential-two"} {
		if _, err := cache.Resolve(context.Background(), cred); err != nil {
			t.Fatalf("failed to resolve %s: %s", cred, err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 cached entries, got %d", cache.Len())
	}

	r := &CacheReconciler{ctrl: &CacheController{cache: cache}}
	res, err := r.Reconcile(&table.IdentityKey{CredentialHash: auth.HashCredential("credential-one")})
	if err != nil || res == nil {
		t.Fatalf("unexpected reconcile result %v, %v", res, err)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached entry after reconcile, got %d", cache.Len())
	}

	// unexpected key types are ignored
	if _, err := r.Reconcile("bogus"); err != nil {
		t.Errorf("unexpected error for bogus key: %s", err)
	}
	if cache.Len() != 1 {
		t.Errorf("bogus key changed the cache, got %d entries", cache.Len())
	}
}
