// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package keycloak

import (
	"errors"
	"net/http"

	"github.com/Nerzal/gocloak/v13"
)

// reports whether keycloak rejected the request itself, as opposed to
// failing to serve it
func isClientError(err error) bool {
	var apiErr *gocloak.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusBadRequest && apiErr.Code < http.StatusInternalServerError
	}
	return false
}
