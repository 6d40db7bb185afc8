package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"agentmcp/internal/clock"
	"agentmcp/internal/config"
	"agentmcp/internal/credential"
	"agentmcp/internal/keys"
	"agentmcp/internal/token"
	"agentmcp/internal/tools"

	"github.com/spf13/cobra"
)

var errNoSecret = errors.New("AGENTMCP_TOKEN_SECRET is not set; a token minted without it cannot be decoded by the server")

type inspectOutput struct {
	Valid      bool   `json:"valid"`
	Credential string `json:"credential,omitempty"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
}

func newRootCmd(load func() (config.Config, error)) *cobra.Command {
	var clk clock.Clock = clock.Real()

	codec := func(ttl time.Duration) (*token.Codec, error) {
		cfg, err := load()
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if cfg.TokenSecret == "" {
			return nil, errNoSecret
		}
		if ttl == 0 {
			ttl = cfg.TokenTTL
		}
		return token.NewCodec(token.Config{Secret: cfg.TokenSecret, TTL: ttl}, token.WithClock(clk))
	}

	root := &cobra.Command{
		Use:          "tokenctl",
		Short:        "Mint and inspect agentmcp credential tokens",
		SilenceUsage: true,
	}

	var apiKey string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Seal an API key into a token",
		Long: `Seal an API key into a token that the server accepts as ?token= or X-MCP-Token.

Examples:
  tokenctl mint --api-key key_xxxxxxxxxxxxxxxxxxxx
  tokenctl mint --api-key key_xxxxxxxxxxxxxxxxxxxx --ttl 24h | jq -r .token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := codec(ttl)
			if err != nil {
				return err
			}
			out, err := tools.Mint(c, apiKey)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	mint.Flags().StringVar(&apiKey, "api-key", "", "API key to seal")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default AGENTMCP_TOKEN_TTL_MS)")
	_ = mint.MarkFlagRequired("api-key")

	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a token and show its masked credential and expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := codec(0)
			if err != nil {
				return err
			}
			out := inspectOutput{}
			if cred, ok := c.Decode(args[0]); ok {
				out.Valid = true
				out.Credential = credential.Mask(cred)
				if exp, ok := c.ExpiresAt(args[0]); ok {
					out.ExpiresAt = exp.UTC().Format(time.RFC3339)
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Valid {
				return errors.New("token is invalid, expired, or sealed with another secret")
			}
			return nil
		},
	}

	secret := &cobra.Command{
		Use:   "secret",
		Short: "Generate a value for AGENTMCP_TOKEN_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := keys.NewSecret()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}

	root.AddCommand(mint, inspect, secret)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
