package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"agentmcp/internal/config"
	"agentmcp/internal/token"

	"github.com/stretchr/testify/require"
)

const testKey = "key_tokenctl_credential_0001"

func run(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(func() (config.Config, error) { return cfg, nil })
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMintThenInspect(t *testing.T) {
	cfg := config.Config{TokenSecret: "shared-secret", TokenTTL: time.Hour}

	out, err := run(t, cfg, "mint", "--api-key", testKey)
	require.NoError(t, err)
	var minted struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
		TTLMs     int64  `json:"ttlMs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &minted))
	require.NotEmpty(t, minted.Token)
	require.Equal(t, time.Hour.Milliseconds(), minted.TTLMs)

	// The server decodes it with the same secret.
	codec, err := token.NewCodec(token.Config{Secret: "shared-secret", TTL: time.Hour})
	require.NoError(t, err)
	got, ok := codec.Decode(minted.Token)
	require.True(t, ok)
	require.Equal(t, testKey, got)

	out, err = run(t, cfg, "inspect", minted.Token)
	require.NoError(t, err)
	var inspected inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &inspected))
	require.True(t, inspected.Valid)
	require.Equal(t, "key_…0001", inspected.Credential)
	require.NotEmpty(t, inspected.ExpiresAt)
}

func TestMintTTLOverride(t *testing.T) {
	out, err := run(t, config.Config{TokenSecret: "s", TokenTTL: time.Hour}, "mint", "--api-key", testKey, "--ttl", "2m")
	require.NoError(t, err)
	require.Contains(t, out, `"ttlMs": 120000`)
}

func TestInspectForeignToken(t *testing.T) {
	out, err := run(t, config.Config{TokenSecret: "a", TokenTTL: time.Hour}, "mint", "--api-key", testKey)
	require.NoError(t, err)
	var minted struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &minted))

	out, err = run(t, config.Config{TokenSecret: "b", TokenTTL: time.Hour}, "inspect", minted.Token)
	require.Error(t, err)
	require.Contains(t, out, `"valid": false`)
}

func TestMintErrors(t *testing.T) {
	_, err := run(t, config.Config{}, "mint", "--api-key", testKey)
	require.ErrorIs(t, err, errNoSecret)

	_, err = run(t, config.Config{TokenSecret: "s", TokenTTL: time.Hour}, "mint", "--api-key", "short")
	require.ErrorContains(t, err, "invalid credential format")

	_, err = run(t, config.Config{TokenSecret: "s"}, "mint")
	require.ErrorContains(t, err, "api-key")
}

func TestSecret(t *testing.T) {
	out, err := run(t, config.Config{}, "secret")
	require.NoError(t, err)
	require.Len(t, out, 44) // 43 base64url chars plus newline
}
