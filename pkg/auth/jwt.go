// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"

	"github.com/go-core-stack/core/errors"
	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver resolves HS256 tokens signed with a shared secret
type JWTResolver struct {
	secret []byte
	issuer string
}

// NewJWTResolver creates a resolver validating tokens signed with the
// secret, a non empty issuer is additionally enforced on the iss claim
func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Resolve validates the token signature and expiry and maps its claims
func (r *JWTResolver) Resolve(_ context.Context, credential string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrapf(errors.NotFound, "invalid token: %s", err)
	}

	id := IdentityFromClaims(claims)
	if id.ID == "" {
		return nil, errors.Wrapf(errors.NotFound, "token carries no subject")
	}
	return id, nil
}

var _ Resolver = (*JWTResolver)(nil)
