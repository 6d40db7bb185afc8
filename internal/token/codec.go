// Package token mints and decodes zero-storage credential tokens.
//
// A token carries an API key and its expiry, sealed with AES-256-GCM under a
// key derived from the configured secret:
//
//	base64url(nonce[12] || tag[16] || ciphertext)
//
// The plaintext is the canonical JSON object {"exp":<epoch ms>,"k":"<key>"}.
// Nothing is stored server side; any instance holding the same secret can
// decode the token until it expires.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"agentmcp/internal/clock"
	"agentmcp/internal/credential"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// Payload is the sealed content of a token.
type Payload struct {
	Key string `json:"k"`
	Exp int64  `json:"exp"`
}

// Config configures a Codec.
type Config struct {
	// Secret is hashed into the AES key. When empty, a process-local key is
	// used and tokens do not survive a restart.
	Secret string
	// TTL is added to the mint time. Zero or negative yields tokens that are
	// already expired.
	TTL time.Duration
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock sets the time source used for expiry.
func WithClock(c clock.Clock) Option {
	return func(codec *Codec) {
		if c != nil {
			codec.clock = c
		}
	}
}

// WithRandom sets the nonce source.
func WithRandom(r io.Reader) Option {
	return func(codec *Codec) {
		if r != nil {
			codec.random = r
		}
	}
}

// Codec mints and decodes tokens. It is immutable after construction and safe
// for concurrent use.
type Codec struct {
	aead      cipher.AEAD
	ttl       time.Duration
	ephemeral bool
	clock     clock.Clock
	random    io.Reader
}

// NewCodec builds a Codec from cfg.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	secret := strings.TrimSpace(cfg.Secret)

	var key [32]byte
	ephemeral := secret == ""
	if ephemeral {
		k, err := processKey()
		if err != nil {
			return nil, fmt.Errorf("token: derive process key: %w", err)
		}
		key = k
	} else {
		key = sha256.Sum256([]byte(secret))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		aead:      gcm,
		ttl:       cfg.TTL,
		ephemeral: ephemeral,
		clock:     clock.Real(),
		random:    rand.Reader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Ephemeral reports whether the codec runs on the process-local key.
func (c *Codec) Ephemeral() bool { return c.ephemeral }

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Mint seals key into a new token. Every call uses a fresh nonce, so minting
// the same key twice yields different tokens.
func (c *Codec) Mint(key credential.Credential) (string, error) {
	if err := credential.Validate(key); err != nil {
		return "", err
	}

	payload := Payload{
		Key: key,
		Exp: c.clock.Now().UnixMilli() + c.ttl.Milliseconds(),
	}
	plaintext, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("token: encode payload: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return "", fmt.Errorf("token: read nonce: %w", err)
	}

	// Seal returns ciphertext || tag; the wire order is nonce || tag || ciphertext.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode returns the credential sealed in token. It never returns an error:
// malformed, tampered, foreign, malformed-payload and expired tokens all
// yield ok=false, which callers treat the same as no token at all.
func (c *Codec) Decode(token string) (credential.Credential, bool) {
	p, ok := c.open(token)
	if !ok {
		return "", false
	}
	if p.Exp <= c.clock.Now().UnixMilli() {
		return "", false
	}
	return p.Key, true
}

// ExpiresAt returns the expiry of a token that would currently decode.
func (c *Codec) ExpiresAt(token string) (time.Time, bool) {
	p, ok := c.open(token)
	if !ok || p.Exp <= c.clock.Now().UnixMilli() {
		return time.Time{}, false
	}
	return time.UnixMilli(p.Exp), true
}

func (c *Codec) open(token string) (Payload, bool) {
	raw, err := base64.RawURLEncoding.Strict().DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Payload{}, false
	}
	if len(raw) < nonceSize+tagSize {
		return Payload{}, false
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ciphertext := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Payload{}, false
	}
	p, err := parsePayload(plaintext)
	if err != nil {
		return Payload{}, false
	}
	if !credential.WellFormed(p.Key) {
		return Payload{}, false
	}
	return p, true
}

var errMissingField = errors.New("token: missing payload field")

func parsePayload(b []byte) (Payload, error) {
	var wire struct {
		Key *string `json:"k"`
		Exp *int64  `json:"exp"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return Payload{}, err
	}
	if wire.Key == nil || wire.Exp == nil {
		return Payload{}, errMissingField
	}
	return Payload{Key: *wire.Key, Exp: *wire.Exp}, nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsoncanonicalizer.Transform(raw)
}

// processKey is derived once per process from the pid and fresh entropy.
// Tokens sealed with it are unrecoverable after a restart and cannot be
// forged by another instance.
var processKey = sync.OnceValues(func() ([32]byte, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return [32]byte{}, err
	}
	material := append([]byte(strconv.Itoa(os.Getpid())+":"), seed...)
	return sha256.Sum256(material), nil
})
