// Command tokenctl mints and inspects credential tokens offline, using the
// same AGENTMCP_TOKEN_SECRET as the server.
package main

import (
	"os"

	"agentmcp/internal/config"
)

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		os.Exit(1)
	}
}
