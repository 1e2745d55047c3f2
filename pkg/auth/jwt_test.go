// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-core-stack/core/errors"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "a-shared-secret-used-only-in-tests"

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %s", err)
	}
	return token
}

func Test_JWTResolver(t *testing.T) {
	r := NewJWTResolver(testSecret, "mcp-issuer")
	token := signHS256(t, testSecret, jwt.MapClaims{
		"iss":       "mcp-issuer",
		"sub":       "user-1",
		"email":     "admin@example.com",
		"roles":     []string{RoleSystemAdmin},
		"tenant_id": "t-0",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	id, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("failed to resolve token: %s", err)
	}
	if id.ID != "user-1" || !id.HasRole(RoleSystemAdmin) || id.TenantID != "t-0" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func Test_JWTResolverRejects(t *testing.T) {
	r := NewJWTResolver(testSecret, "mcp-issuer")
	exp := time.Now().Add(time.Hour).Unix()

	tests := map[string]string{
		"wrong secret": signHS256(t, "another-secret-another-secret", jwt.MapClaims{"iss": "mcp-issuer", "sub": "u", "exp": exp}),
		"wrong issuer": signHS256(t, testSecret, jwt.MapClaims{"iss": "other", "sub": "u", "exp": exp}),
		"no expiry":    signHS256(t, testSecret, jwt.MapClaims{"iss": "mcp-issuer", "sub": "u"}),
		"expired":      signHS256(t, testSecret, jwt.MapClaims{"iss": "mcp-issuer", "sub": "u", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no subject":   signHS256(t, testSecret, jwt.MapClaims{"iss": "mcp-issuer", "exp": exp}),
		"not a jwt":    "this-is-definitely-not-a-signed-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := r.Resolve(context.Background(), token); !errors.IsNotFound(err) {
				t.Errorf("expected not found, got %v", err)
			}
		})
	}
}
