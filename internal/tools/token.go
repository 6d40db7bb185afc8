package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"agentmcp/internal/credential"
	"agentmcp/internal/log"
	"agentmcp/internal/mcp"
)

var mintTokenTool = mcp.Tool{
	Name: "mint_token",
	Description: "Mint an expiring token that carries an API key. Pass it as ?token= or the " +
		"X-MCP-Token header instead of the raw key. Defaults to the key this call is authenticated with.",
	InputSchema: object(nil, map[string]*mcp.PropertySchema{
		"apiKey": str("API key to seal. Defaults to the caller's own credential."),
	}),
}

// MintOutput is the mint_token result, also served by the HTTP mint endpoint.
type MintOutput struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	TTLMs     int64  `json:"ttlMs"`
}

// Mint seals key and describes the resulting token. The reported expiry is
// the one sealed into the token.
func Mint(m Minter, key credential.Credential) (MintOutput, error) {
	tok, err := m.Mint(strings.TrimSpace(key))
	if err != nil {
		return MintOutput{}, err
	}
	exp, ok := m.ExpiresAt(tok)
	if !ok {
		return MintOutput{}, errors.New("minted token does not decode")
	}
	return MintOutput{
		Token:     tok,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
		TTLMs:     m.TTL().Milliseconds(),
	}, nil
}

func (h *handlers) mintToken(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	var args struct {
		APIKey string `json:"apiKey"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(args.APIKey)
	if key == "" && CredentialSourceFrom(ctx) != credential.SourceFallback {
		// The server's own fallback key is never sealed for a caller.
		key = CredentialFrom(ctx)
	}

	out, err := Mint(h.deps.Minter, key)
	if err != nil {
		return nil, err
	}
	log.Info(log.CatAuth, "token minted", "credential", credential.Mask(key), "ttl_ms", out.TTLMs)
	return jsonResult("Token expires at "+out.ExpiresAt, out), nil
}
