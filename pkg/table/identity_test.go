// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-core-stack/core/db"
	"github.com/go-core-stack/core/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
)

func Test_IdentityEntryValidity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	disabled := true
	enabled := false
	user := &auth.Identity{ID: "u1", Email: "admin@example.com", Roles: []string{auth.RoleOrgAdmin}, TenantID: "t-1"}

	tests := []struct {
		name  string
		entry *IdentityEntry
		valid bool
	}{
		{name: "plain", entry: &IdentityEntry{UserInfo: user}, valid: true},
		{name: "enabled", entry: &IdentityEntry{UserInfo: user, Config: &IdentityConfig{IsDisabled: &enabled}}, valid: true},
		{name: "future expiry", entry: &IdentityEntry{UserInfo: user, Config: &IdentityConfig{ExpireAt: now.Unix() + 60}}, valid: true},
		{name: "disabled", entry: &IdentityEntry{UserInfo: user, Config: &IdentityConfig{IsDisabled: &disabled}}},
		{name: "expired", entry: &IdentityEntry{UserInfo: user, Config: &IdentityConfig{ExpireAt: now.Unix()}}},
		{name: "no user info", entry: &IdentityEntry{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.entry.ToIdentity(now)
			if tt.valid {
				if err != nil {
					t.Fatalf("unexpected error: %s", err)
				}
				if id.ID != "u1" || id.TenantID != "t-1" {
					t.Errorf("unexpected identity %+v", id)
				}
				return
			}
			if !errors.IsNotFound(err) {
				t.Errorf("expected not found, got %v", err)
			}
		})
	}
}

func Test_IdentityEntryBSON(t *testing.T) {
	entry := &IdentityEntry{
		Key:      IdentityKey{CredentialHash: auth.HashCredential("credential")},
		UserInfo: &auth.Identity{ID: "u1", TenantID: "t-1", Roles: []string{auth.RoleSystemAdmin}},
	}
	data, err := bson.Marshal(entry)
	if err != nil {
		t.Fatalf("failed to marshal entry: %s", err)
	}

	raw := bson.Raw(data)
	if got := raw.Lookup("key", "credentialHash").StringValue(); got != entry.Key.CredentialHash {
		t.Errorf("unexpected stored hash %q", got)
	}
	if got := raw.Lookup("userInfo", "tenantId").StringValue(); got != "t-1" {
		t.Errorf("unexpected stored tenant %q", got)
	}
}

// memCollection is an in memory store collection serving the calls
// the identity table makes
type memCollection struct {
	db.StoreCollection
	mu      sync.Mutex
	entries map[IdentityKey]IdentityEntry
	err     error
}

func newMemCollection() *memCollection {
	return &memCollection{entries: map[IdentityKey]IdentityEntry{}}
}

func (c *memCollection) SetKeyType(keyType reflect.Type) error {
	return nil
}

func (c *memCollection) Watch(ctx context.Context, filter any, cb db.WatchCallbackfn) error {
	return nil
}

func (c *memCollection) FindMany(ctx context.Context, filter any, data any, opts ...any) error {
	return nil
}

func (c *memCollection) InsertOne(ctx context.Context, key any, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := *key.(*IdentityKey)
	if _, ok := c.entries[k]; ok {
		return errors.Wrap(errors.AlreadyExists, "duplicate key")
	}
	c.entries[k] = *data.(*IdentityEntry)
	return nil
}

func (c *memCollection) FindOne(ctx context.Context, key any, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	entry, ok := c.entries[*key.(*IdentityKey)]
	if !ok {
		return errors.Wrap(errors.NotFound, "mongo: no documents in result")
	}
	*data.(*IdentityEntry) = entry
	return nil
}

func newTestTable(t *testing.T, col *memCollection) *IdentityTable {
	t.Helper()
	tbl := &IdentityTable{
		col: col,
		now: func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
	if err := tbl.Initialize(col); err != nil {
		t.Fatalf("failed to initialize table: %s", err)
	}
	return tbl
}

func Test_IdentityTableResolve(t *testing.T) {
	col := newMemCollection()
	tbl := newTestTable(t, col)
	ctx := context.Background()

	user := &auth.Identity{ID: "u1", Email: "admin@example.com", Roles: []string{auth.RoleOrgAdmin}, TenantID: "t-1"}
	if err := tbl.InsertCredential(ctx, "credential-one", user, nil); err != nil {
		t.Fatalf("failed to insert credential: %s", err)
	}
	disabled := true
	if err := tbl.InsertCredential(ctx, "credential-two", user, &IdentityConfig{IsDisabled: &disabled}); err != nil {
		t.Fatalf("failed to insert credential: %s", err)
	}

	id, err := tbl.Resolve(ctx, "credential-one")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if id.Email != "admin@example.com" || id.TenantID != "t-1" {
		t.Errorf("unexpected identity %+v", id)
	}

	if _, err := tbl.Resolve(ctx, "credential-two"); !errors.IsNotFound(err) {
		t.Errorf("disabled credential: expected not found, got %v", err)
	}
	if _, err := tbl.Resolve(ctx, "unknown"); !errors.IsNotFound(err) {
		t.Errorf("unknown credential: expected not found, got %v", err)
	}

	if err := tbl.InsertCredential(ctx, "credential-one", user, nil); !errors.IsAlreadyExists(err) {
		t.Errorf("duplicate credential: expected already exists, got %v", err)
	}

	col.err = errors.Wrap(errors.Unknown, "server selection timeout")
	_, err = tbl.Resolve(ctx, "credential-one")
	if err == nil || errors.IsNotFound(err) {
		t.Errorf("store failure must not be reported as not found, got %v", err)
	}
}
