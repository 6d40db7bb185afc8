package keys

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// SecretBytes is the entropy of a generated token secret.
const SecretBytes = 32

// NewSecret returns a random value for AGENTMCP_TOKEN_SECRET.
func NewSecret() (string, error) {
	return newSecret(rand.Reader)
}

func newSecret(r io.Reader) (string, error) {
	var b [SecretBytes]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", fmt.Errorf("keys: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
