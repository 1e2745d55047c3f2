// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cachedIdentity struct {
	identity  *Identity
	expiresAt time.Time
}

// CachingResolver wraps a Resolver with a TTL bounded cache keyed by
// the credential hash. Concurrent lookups of the same credential are
// collapsed into a single backend call and failures are never cached.
type CachingResolver struct {
	next          Resolver
	ttl           time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
	group         singleflight.Group
	mu            sync.RWMutex
	entries       map[string]cachedIdentity
}

// DefaultLookupTimeout bounds a shared backend lookup
const DefaultLookupTimeout = 10 * time.Second

// NewCachingResolver creates a caching resolver in front of next,
// a ttl of zero or less disables caching and every lookup reaches
// next directly
func NewCachingResolver(next Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:          next,
		ttl:           ttl,
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
		entries:       make(map[string]cachedIdentity),
	}
}

// Resolve returns the cached identity if still fresh, otherwise
// resolves it through the wrapped resolver
func (c *CachingResolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	if c.ttl <= 0 {
		return c.next.Resolve(ctx, credential)
	}

	key := HashCredential(credential)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if c.now().Before(entry.expiresAt) {
			return entry.identity.Clone(), nil
		}
		// expired, clean up lazily
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}

	// the shared lookup outlives any single caller, each caller only
	// stops waiting on its own cancellation
	ch := c.group.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		id, err := c.next.Resolve(lookupCtx, credential)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cachedIdentity{
			identity:  id.Clone(),
			expiresAt: c.now().Add(c.ttl),
		}
		c.mu.Unlock()
		return id, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Identity).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached identity for the credential, to be used
// when the credential is revoked
func (c *CachingResolver) Invalidate(credential string) {
	c.InvalidateHash(HashCredential(credential))
}

// InvalidateHash drops the cached identity for an already hashed
// credential, as stored by the identity table
func (c *CachingResolver) InvalidateHash(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, hash)
}

// Purge drops all the cached identities
func (c *CachingResolver) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedIdentity)
}

// Len returns the number of cached entries, including expired ones
// not yet cleaned up
func (c *CachingResolver) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Resolver = (*CachingResolver)(nil)
