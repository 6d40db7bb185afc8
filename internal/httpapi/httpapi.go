package httpapi

import (
	"time"

	"agentmcp/internal/credential"
	"agentmcp/internal/mcp"
	"agentmcp/internal/tools"
)

type Deps struct {
	MCP      *mcp.Server
	Resolver *credential.Resolver
	Minter   tools.Minter
	// DefaultKey is used when a request carries no credential of its own.
	DefaultKey credential.Credential

	CORSOrigins        []string
	RateLimitPerMinute int

	Now func() time.Time
}
