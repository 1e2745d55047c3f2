// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-core-stack/core/errors"
)

type countingResolver struct {
	calls atomic.Int32
	fail  atomic.Bool
	delay time.Duration
}

func (r *countingResolver) Resolve(_ context.Context, credential string) (*Identity, error) {
	r.calls.Add(1)
	if r.delay != 0 {
		time.Sleep(r.delay)
	}
	if r.fail.Load() {
		return nil, errors.Wrapf(errors.Unknown, "backend down")
	}
	return &Identity{ID: credential, Roles: []string{RoleOrgAdmin}}, nil
}

func Test_CachingResolverTTL(t *testing.T) {
	backend := &countingResolver{}
	c := NewCachingResolver(backend, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	for range 3 {
		if _, err := c.Resolve(context.Background(), testCredential); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}
	if got := backend.calls.Load(); got != 1 {
		t.Errorf("expected a single backend call, got %d", got)
	}

	now = now.Add(time.Minute)
	if _, err := c.Resolve(context.Background(), testCredential); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := backend.calls.Load(); got != 2 {
		t.Errorf("expected expired entry to be resolved again, got %d calls", got)
	}
}

func Test_CachingResolverInvalidate(t *testing.T) {
	backend := &countingResolver{}
	c := NewCachingResolver(backend, time.Minute)

	_, _ = c.Resolve(context.Background(), testCredential)
	c.Invalidate(testCredential)
	if c.Len() != 0 {
		t.Errorf("expected empty cache after invalidate")
	}
	_, _ = c.Resolve(context.Background(), testCredential)
	if got := backend.calls.Load(); got != 2 {
		t.Errorf("expected invalidated entry to be resolved again, got %d calls", got)
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge")
	}
}

func Test_CachingResolverFailureNotCached(t *testing.T) {
	backend := &countingResolver{}
	backend.fail.Store(true)
	c := NewCachingResolver(backend, time.Minute)

	if _, err := c.Resolve(context.Background(), testCredential); err == nil {
		t.Fatalf("expected backend error")
	}
	backend.fail.Store(false)
	if _, err := c.Resolve(context.Background(), testCredential); err != nil {
		t.Fatalf("expected recovery once backend is back, got %s", err)
	}
	if got := backend.calls.Load(); got != 2 {
		t.Errorf("expected failure not to be cached, got %d calls", got)
	}
}

func Test_CachingResolverDisabled(t *testing.T) {
	backend := &countingResolver{}
	c := NewCachingResolver(backend, 0)
	for range 3 {
		_, _ = c.Resolve(context.Background(), testCredential)
	}
	if got := backend.calls.Load(); got != 3 {
		t.Errorf("expected every lookup to reach backend, got %d", got)
	}
}

func Test_CachingResolverSingleflight(t *testing.T) {
	backend := &countingResolver{delay: 50 * time.Millisecond}
	c := NewCachingResolver(backend, time.Minute)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := c.Resolve(context.Background(), testCredential)
			if err != nil || id.ID != testCredential {
				t.Errorf("unexpected result %v, %v", id, err)
			}
		}()
	}
	wg.Wait()

	if got := backend.calls.Load(); got != 1 {
		t.Errorf("expected concurrent lookups to collapse, got %d backend calls", got)
	}
}

func Test_CachingResolverSharedLookupSurvivesCancel(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	backend := ResolverFunc(func(ctx context.Context, credential string) (*Identity, error) {
		started <- struct{}{}
		select {
		case <-release:
			return &Identity{ID: "u1", TenantID: "t-1"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c := NewCachingResolver(backend, time.Minute)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Resolve(firstCtx, "credential")
		firstErr <- err
	}()
	<-started

	type result struct {
		id  *Identity
		err error
	}
	second := make(chan result, 1)
	go func() {
		id, err := c.Resolve(context.Background(), "credential")
		second <- result{id, err}
	}()

	// the first caller goes away while the lookup is in flight
	cancel()
	if err := <-firstErr; err != context.Canceled {
		t.Errorf("first caller: expected context canceled, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-second
	if res.err != nil {
		t.Fatalf("second caller failed: %s", res.err)
	}
	if res.id.ID != "u1" {
		t.Errorf("unexpected identity %+v", res.id)
	}
	if c.Len() != 1 {
		t.Errorf("expected the shared lookup to be cached, got %d entries", c.Len())
	}
}
