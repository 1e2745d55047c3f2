// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

import (
	"context"
	"time"

	"github.com/go-core-stack/core/db"
	"github.com/go-core-stack/core/errors"
	"github.com/go-core-stack/core/table"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
)

var identityTable *IdentityTable

// IdentityKey is the key for the identity table
type IdentityKey struct {
	// SHA-256 hex of the credential
	CredentialHash string `bson:"credentialHash,omitempty"`
}

type IdentityConfig struct {
	// ExpireAt is the unix timestamp after which the credential is no
	// longer honoured, zero means never
	ExpireAt int64 `bson:"expireAt,omitempty"`

	// IsDisabled indicates whether the credential is disabled
	IsDisabled *bool `bson:"isDisabled,omitempty"`
}

type IdentityEntry struct {
	// key of the entry
	Key IdentityKey `bson:"key"`

	// identity the credential maps to, an entry without user info
	// is considered invalid
	UserInfo *auth.Identity `bson:"userInfo,omitempty"`

	// created timestamp
	Created int64 `bson:"created,omitempty"`

	// config for the credential
	Config *IdentityConfig `bson:"config,omitempty"`
}

// ToIdentity returns the identity carried by the entry if it is
// currently valid
func (e *IdentityEntry) ToIdentity(now time.Time) (*auth.Identity, error) {
	if e.UserInfo == nil || e.UserInfo.ID == "" {
		return nil, errors.Wrapf(errors.NotFound, "identity entry carries no user info")
	}
	if e.Config != nil {
		if e.Config.IsDisabled != nil && *e.Config.IsDisabled {
			return nil, errors.Wrapf(errors.NotFound, "credential is disabled")
		}
		if e.Config.ExpireAt != 0 && now.Unix() >= e.Config.ExpireAt {
			return nil, errors.Wrapf(errors.NotFound, "credential has expired")
		}
	}
	return e.UserInfo.Clone(), nil
}

// IdentityTable resolves credentials against the identities collection
type IdentityTable struct {
	table.Table[IdentityKey, IdentityEntry]
	col db.StoreCollection
	now func() time.Time
}

// InsertCredential adds an identity entry for the given credential
func (t *IdentityTable) InsertCredential(ctx context.Context, credential string, id *auth.Identity, cfg *IdentityConfig) error {
	key := &IdentityKey{CredentialHash: auth.HashCredential(credential)}
	entry := &IdentityEntry{
		Key:      *key,
		UserInfo: id,
		Created:  t.now().Unix(),
		Config:   cfg,
	}
	return t.Insert(ctx, key, entry)
}

// Resolve looks up the identity for the credential
func (t *IdentityTable) Resolve(ctx context.Context, credential string) (*auth.Identity, error) {
	key := &IdentityKey{CredentialHash: auth.HashCredential(credential)}

	// table Find reports every failure as not found, lookup on the
	// collection directly to keep store errors apart from misses
	entry := &IdentityEntry{}
	err := t.col.FindOne(ctx, key, entry)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrapf(errors.NotFound, "no identity found for the provided credential")
		}
		return nil, errors.Wrapf(errors.Unknown, "failed to lookup identity: %s", err)
	}

	return entry.ToIdentity(t.now())
}

func GetIdentityTable() (*IdentityTable, error) {
	if identityTable != nil {
		return identityTable, nil
	}

	return nil, errors.Wrapf(errors.NotFound, "identity table not found")
}

func LocateIdentityTable(client db.StoreClient) (*IdentityTable, error) {
	if identityTable != nil {
		return identityTable, nil
	}

	col := client.GetCollection(GatewayDatabaseName, IdentityCollectionName)

	tbl := &IdentityTable{
		col: col,
		now: time.Now,
	}

	err := tbl.Initialize(col)
	if err != nil {
		return nil, err
	}

	identityTable = tbl

	return identityTable, nil
}

var _ auth.Resolver = (*IdentityTable)(nil)
