// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package identity

import (
	"log"

	"github.com/go-core-stack/core/reconciler"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
	"github.com/go-core-stack/mcp-gateway/pkg/table"
)

// Identity Cache Controller responsible for dropping cached
// identities whenever the corresponding entry in the identity table
// is updated, disabled or removed
type CacheController struct {
	tbl   *table.IdentityTable
	cache *auth.CachingResolver
}

type CacheReconciler struct {
	reconciler.Controller
	ctrl *CacheController
}

func (r *CacheReconciler) Reconcile(k any) (*reconciler.Result, error) {
	key, ok := k.(*table.IdentityKey)
	if !ok {
		log.Printf("identity cache controller got unexpected key %v", k)
		return &reconciler.Result{}, nil
	}

	// changes may be revocations, the next lookup goes to the table
	r.ctrl.cache.InvalidateHash(key.CredentialHash)
	return &reconciler.Result{}, nil
}

// Creates New Identity Cache Controller
func NewCacheController(tbl *table.IdentityTable, cache *auth.CachingResolver) (*CacheController, error) {
	ctrl := &CacheController{
		tbl:   tbl,
		cache: cache,
	}

	r := &CacheReconciler{
		ctrl: ctrl,
	}

	err := tbl.Register("IdentityCacheController", r)
	if err != nil {
		return nil, err
	}

	return ctrl, nil
}
