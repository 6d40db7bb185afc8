// Package credential validates remote API keys and resolves which key an
// inbound request should act with.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Credential is a remote API key. It is never persisted.
type Credential = string

const (
	// Prefix every remote API key starts with.
	Prefix = "key_"
	// MinLength is the shortest key the remote API issues.
	MinLength = 20
)

const (
	msgRequired      = "credential required to mint token"
	msgInvalidFormat = "invalid credential format"
	textCodeBadInput = "BAD_INPUT"
)

// Validate checks the key format. It returns a go-errors validation error
// suitable for surfacing to the caller.
func Validate(c Credential) error {
	if c == "" {
		return validationError(msgRequired)
	}
	if !WellFormed(c) {
		return validationError(msgInvalidFormat)
	}
	return nil
}

// WellFormed reports whether c satisfies the prefix and length rule.
func WellFormed(c Credential) bool {
	return len(c) >= MinLength && strings.HasPrefix(c, Prefix)
}

// Mask renders a credential for logs: the prefix and the last four characters.
func Mask(c Credential) string {
	if c == "" {
		return ""
	}
	if len(c) <= len(Prefix)+4 {
		return "****"
	}
	return c[:len(Prefix)] + "…" + c[len(c)-4:]
}

// Fingerprint returns a short, stable, non-reversible identifier for c, used
// as a cache key.
func Fingerprint(c Credential) string {
	sum := sha256.Sum256([]byte("agentmcp:" + c))
	return hex.EncodeToString(sum[:8])
}

func validationError(msg string) error {
	return goerrors.NewValidation(msg, goerrors.FieldError{
		Field:   "apiKey",
		Message: msg,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(textCodeBadInput)
}
