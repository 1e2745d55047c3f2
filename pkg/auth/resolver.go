// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"sync"

	"github.com/go-core-stack/core/errors"
	"gopkg.in/yaml.v2"
)

// Resolver maps a validated credential to an Identity.
//
// Implementations must be safe for concurrent use and must return an
// error satisfying errors.IsNotFound when no identity maps to the
// credential, any other error is treated as the backing store being
// unavailable.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*Identity, error)
}

// ResolverFunc adapts an ordinary function to a Resolver
type ResolverFunc func(ctx context.Context, credential string) (*Identity, error)

// Resolve calls f(ctx, credential)
func (f ResolverFunc) Resolve(ctx context.Context, credential string) (*Identity, error) {
	return f(ctx, credential)
}

// HashCredential returns the hex encoded SHA-256 of the credential,
// used as the lookup key so that raw credentials are never stored
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// StaticEntry is a single identity in the static identity file
type StaticEntry struct {
	// SHA-256 hex of the credential, see HashCredential
	CredentialHash string `yaml:"credentialHash"`

	Identity `yaml:",inline"`
}

type staticFile struct {
	Identities []StaticEntry `yaml:"identities"`
}

// StaticResolver is an in-memory identity table keyed by credential
// hash, typically loaded from a file at startup
type StaticResolver struct {
	mu      sync.RWMutex
	entries map[string]*Identity
}

// NewStaticResolver creates a static resolver with the given entries
func NewStaticResolver(entries ...StaticEntry) *StaticResolver {
	r := &StaticResolver{
		entries: make(map[string]*Identity, len(entries)),
	}
	for _, e := range entries {
		r.Add(e.CredentialHash, &e.Identity)
	}
	return r
}

// LoadStaticResolver reads the YAML identity file from the provided
// path, an empty path results in an empty table where every lookup
// fails with not found
func LoadStaticResolver(path string) (*StaticResolver, error) {
	if path == "" {
		return NewStaticResolver(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	file := &staticFile{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "invalid identity file %s: %s", path, err)
	}

	for i, e := range file.Identities {
		if e.CredentialHash == "" || e.ID == "" {
			return nil, errors.Wrapf(errors.InvalidArgument, "identity entry %d in %s requires credentialHash and id", i, path)
		}
	}

	return NewStaticResolver(file.Identities...), nil
}

// Add registers an identity for the given credential hash
func (r *StaticResolver) Add(credentialHash string, id *Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[strings.ToLower(credentialHash)] = id.Clone()
}

// Remove drops the identity registered for the given credential hash
func (r *StaticResolver) Remove(credentialHash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, strings.ToLower(credentialHash))
}

// Len returns the number of registered identities
func (r *StaticResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Resolve looks up the identity for the credential
func (r *StaticResolver) Resolve(_ context.Context, credential string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.entries[HashCredential(credential)]
	if !ok {
		return nil, errors.Wrapf(errors.NotFound, "no identity found for the provided credential")
	}
	return id.Clone(), nil
}

var _ Resolver = (*StaticResolver)(nil)
