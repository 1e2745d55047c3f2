// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-core-stack/core/errors"
)

// OIDCResolver resolves the bearer credential by verifying it as a
// token issued by an OIDC provider and mapping its claims to an
// Identity
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
}

type providerClaims struct {
	JWKSURL string   `json:"jwks_uri"`
	Algs    []string `json:"id_token_signing_alg_values_supported"`
}

// NewOIDCResolver discovers the provider configuration of the issuer
// and creates a resolver accepting tokens issued for clientID.
// client is optional and used for talking to the provider.
func NewOIDCResolver(ctx context.Context, issuer, clientID string, client *http.Client) (*OIDCResolver, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to create oidc provider for %s: %s", issuer, err)
	}

	claims := &providerClaims{}
	if err := provider.Claims(claims); err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to read oidc provider config for %s: %s", issuer, err)
	}
	config := &oidc.Config{
		ClientID:             clientID,
		SupportedSigningAlgs: claims.Algs,
	}
	return NewOIDCResolverWithKeySet(issuer, oidc.NewRemoteKeySet(ctx, claims.JWKSURL), config), nil
}

// NewOIDCResolverWithKeySet creates a resolver verifying tokens
// against the given key set, failures of the key set to fetch keys
// are reported as the provider being unavailable
func NewOIDCResolverWithKeySet(issuer string, keySet oidc.KeySet, config *oidc.Config) *OIDCResolver {
	return NewOIDCResolverWithVerifier(oidc.NewVerifier(issuer, &trackingKeySet{KeySet: keySet}, config))
}

// NewOIDCResolverWithVerifier creates a resolver around an already
// configured verifier
func NewOIDCResolverWithVerifier(verifier *oidc.IDTokenVerifier) *OIDCResolver {
	return &OIDCResolver{verifier: verifier}
}

type keyFetchFailureKey struct{}

type keyFetchFailure struct {
	err error
}

// trackingKeySet records key fetch failures in the verification
// context, the verifier flattens key set errors into plain strings
type trackingKeySet struct {
	oidc.KeySet
}

func (k *trackingKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.KeySet.VerifySignature(ctx, jwt)
	// remote key sets wrap only the errors of fetching the keys,
	// signature mismatches are plain errors
	if err != nil && stderrors.Unwrap(err) != nil {
		if failure, ok := ctx.Value(keyFetchFailureKey{}).(*keyFetchFailure); ok {
			failure.err = err
		}
	}
	return payload, err
}

// Resolve verifies the token and decodes its claims
func (r *OIDCResolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	failure := &keyFetchFailure{}
	token, err := r.verifier.Verify(context.WithValue(ctx, keyFetchFailureKey{}, failure), credential)
	if err != nil {
		if failure.err != nil || ctx.Err() != nil {
			return nil, errors.Wrapf(errors.Unknown, "oidc provider unavailable: %s", err)
		}
		return nil, errors.Wrapf(errors.NotFound, "failed to verify the provided token: %s", err)
	}

	claims := map[string]any{}
	if err := token.Claims(&claims); err != nil {
		return nil, errors.Wrapf(errors.NotFound, "failed to decode token claims: %s", err)
	}

	id := IdentityFromClaims(claims)
	if id.ID == "" {
		id.ID = token.Subject
	}
	return id, nil
}

var _ Resolver = (*OIDCResolver)(nil)
