// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package keycloak

import (
	"context"
	"crypto/tls"

	"github.com/Nerzal/gocloak/v13"

	"github.com/go-core-stack/core/errors"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
)

// Config carries the parameters required to introspect tokens
// against a keycloak realm
type Config struct {
	// base url of keycloak
	URL string

	// realm in which the tokens are issued
	Realm string

	// confidential client used for token introspection
	ClientID     string
	ClientSecret string

	// skip TLS verification, only meant for internal deployments
	SkipTLSVerify bool
}

// Client resolves bearer tokens into gateway identities by
// introspecting them with keycloak and reading the user info
type Client struct {
	// gocloak lib handle
	gocloak.GoCloak

	// realm where the user is authenticated
	realm string

	// client credentials used for introspection
	clientID     string
	clientSecret string
}

// create a new keycloak resolver client for the given config
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.Realm == "" || cfg.ClientID == "" {
		return nil, errors.Wrapf(errors.InvalidArgument, "keycloak url, realm and client id are required")
	}

	client := &Client{
		GoCloak:      *(gocloak.NewClient(cfg.URL)),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}

	// internal keycloak deployments typically run with self signed
	// certificates
	if cfg.SkipTLSVerify {
		restyClient := client.RestyClient()
		restyClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return client, nil
}

// Resolve introspects the token, inactive tokens are reported as not
// found while transport failures are reported as unknown so that the
// gateway treats keycloak as unavailable
func (c *Client) Resolve(ctx context.Context, credential string) (*auth.Identity, error) {
	result, err := c.RetrospectToken(ctx, credential, c.clientID, c.clientSecret, c.realm)
	if err != nil {
		if isClientError(err) {
			return nil, errors.Wrapf(errors.NotFound, "token rejected by keycloak: %s", err)
		}
		return nil, errors.Wrapf(errors.Unknown, "failed to introspect token: %s", err)
	}

	if result == nil || result.Active == nil || !*result.Active {
		return nil, errors.Wrapf(errors.NotFound, "token is not active")
	}

	claims, err := c.GetRawUserInfo(ctx, credential, c.realm)
	if err != nil {
		if isClientError(err) {
			return nil, errors.Wrapf(errors.NotFound, "failed to get user info: %s", err)
		}
		return nil, errors.Wrapf(errors.Unknown, "failed to get user info: %s", err)
	}

	id := auth.IdentityFromClaims(claims)
	if id.ID == "" {
		return nil, errors.Wrapf(errors.NotFound, "user info carries no subject")
	}
	return id, nil
}

var _ auth.Resolver = (*Client)(nil)
