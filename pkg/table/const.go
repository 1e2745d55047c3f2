// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

const (
	// gateway database name
	GatewayDatabaseName = "mcp-gateway"
)

const (
	// identities collection name
	IdentityCollectionName = "identities"
)
