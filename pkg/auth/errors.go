// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import "errors"

var (
	// ErrUnauthenticated is returned when the request carries no usable
	// credential
	ErrUnauthenticated = errors.New("unauthenticated")
)
