// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"fmt"
	"strings"
)

// DefaultMinCredentialLength is the syntactic floor applied to a bearer
// credential before any identity lookup is attempted. It is a cheap
// filter for obviously malformed keys, not a security guarantee.
const DefaultMinCredentialLength = 32

const bearerPrefix = "bearer "

// ExtractBearer returns the bearer credential carried in the provided
// Authorization header value, unmodified.
//
// The header must use the Bearer scheme (matched case-insensitively)
// and the token must be at least minLength characters long, a
// minLength of zero or less falls back to DefaultMinCredentialLength.
func ExtractBearer(header string, minLength int) (string, error) {
	if minLength <= 0 {
		minLength = DefaultMinCredentialLength
	}

	header = strings.TrimSpace(header)
	if header == "" {
		return "", fmt.Errorf("%w: API key required", ErrUnauthenticated)
	}

	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", fmt.Errorf("%w: bearer token required", ErrUnauthenticated)
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if len(token) < minLength {
		return "", fmt.Errorf("%w: Invalid API key", ErrUnauthenticated)
	}

	return token, nil
}
