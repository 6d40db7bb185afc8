package token

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"testing"
	"time"

	"agentmcp/internal/clock"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testKey = "key_0123456789abcdefghij"

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCodec(t *testing.T, secret string, ttl time.Duration) (*Codec, *clock.FakeClock) {
	t.Helper()
	fc := clock.Fake(epoch)
	c, err := NewCodec(Config{Secret: secret, TTL: ttl}, WithClock(fc))
	require.NoError(t, err)
	return c, fc
}

// seal encrypts an arbitrary plaintext with the codec's key in wire layout,
// for payloads Mint would refuse to produce.
func seal(t *testing.T, c *Codec, plaintext []byte) string {
	t.Helper()
	nonce := make([]byte, nonceSize)
	_, err := io.ReadFull(rand.Reader, nonce)
	require.NoError(t, err)
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	out := append(append(append([]byte{}, nonce...), sealed[len(sealed)-tagSize:]...), sealed[:len(sealed)-tagSize]...)
	return base64.RawURLEncoding.EncodeToString(out)
}

func credentialGen() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		suffix := rapid.StringMatching(`[A-Za-z0-9_\-]{16,64}`).Draw(t, "suffix")
		return "key_" + suffix
	})
}

func TestMintDecodeRoundTrip(t *testing.T) {
	c, _ := newTestCodec(t, "test-secret", time.Hour)

	rapid.Check(t, func(rt *rapid.T) {
		key := credentialGen().Draw(rt, "key")
		tok, err := c.Mint(key)
		if err != nil {
			rt.Fatalf("mint: %v", err)
		}
		got, ok := c.Decode(tok)
		if !ok || got != key {
			rt.Fatalf("decode(mint(%q)) = %q, %v", key, got, ok)
		}
	})
}

func TestTamperedTokenFailsClosed(t *testing.T) {
	c, _ := newTestCodec(t, "test-secret", time.Hour)
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	rapid.Check(t, func(rt *rapid.T) {
		key := credentialGen().Draw(rt, "key")
		tok, err := c.Mint(key)
		if err != nil {
			rt.Fatalf("mint: %v", err)
		}
		i := rapid.IntRange(0, len(tok)-1).Draw(rt, "index")
		replacement := rapid.SampledFrom([]byte(alphabet)).Filter(func(b byte) bool {
			return b != tok[i]
		}).Draw(rt, "replacement")

		tampered := tok[:i] + string(replacement) + tok[i+1:]
		if got, ok := c.Decode(tampered); ok {
			rt.Fatalf("tampered token decoded to %q", got)
		}
	})
}

func TestMintIsNonDeterministic(t *testing.T) {
	c, _ := newTestCodec(t, "test-secret", time.Hour)

	a, err := c.Mint(testKey)
	require.NoError(t, err)
	b, err := c.Mint(testKey)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestWireLayout(t *testing.T) {
	c, _ := newTestCodec(t, "test-secret", time.Hour)

	tok, err := c.Mint(testKey)
	require.NoError(t, err)
	assert.NotContains(t, tok, "=")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "/")

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	plaintextLen := len(`{"exp":`) + len("1772370000000") + len(`,"k":"`) + len(testKey) + len(`"}`)
	assert.Equal(t, nonceSize+tagSize+plaintextLen, len(raw))
}

func TestExpiry(t *testing.T) {
	c, fc := newTestCodec(t, "test-secret", 10*time.Minute)

	tok, err := c.Mint(testKey)
	require.NoError(t, err)

	got, ok := c.Decode(tok)
	require.True(t, ok)
	assert.Equal(t, testKey, got)

	exp, ok := c.ExpiresAt(tok)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(10*time.Minute).UnixMilli(), exp.UnixMilli())

	fc.Advance(10*time.Minute - time.Millisecond)
	_, ok = c.Decode(tok)
	assert.True(t, ok, "token should still be valid just before expiry")

	fc.Advance(time.Millisecond)
	_, ok = c.Decode(tok)
	assert.False(t, ok, "token must be rejected at expiry")

	_, ok = c.ExpiresAt(tok)
	assert.False(t, ok)
}

func TestNonPositiveTTLMintsExpiredTokens(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Hour} {
		c, _ := newTestCodec(t, "test-secret", ttl)

		tok, err := c.Mint(testKey)
		require.NoError(t, err, "non-positive TTL is not a mint error")
		require.NotEmpty(t, tok)

		_, ok := c.Decode(tok)
		assert.False(t, ok, "ttl=%v", ttl)
	}
}

func TestMintRejectsBadCredentials(t *testing.T) {
	c, _ := newTestCodec(t, "test-secret", time.Hour)

	tests := []struct {
		in      string
		wantMsg string
	}{
		{"", "credential required to mint token"},
		{"key_short", "invalid credential format"},
		{"sk_" + strings.Repeat("a", 30), "invalid credential format"},
	}
	for _, tt := range tests {
		tok, err := c.Mint(tt.in)
		require.Error(t, err, "input %q", tt.in)
		assert.Empty(t, tok)
		assert.Contains(t, err.Error(), tt.wantMsg)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, goerrors.CategoryValidation, rich.Category)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	c, _ := newTestCodec(t, "test-secret", time.Hour)

	inputs := map[string]string{
		"empty":           "",
		"not base64":      "!!!not*base64!!!",
		"padded base64":   base64.URLEncoding.EncodeToString([]byte("0123456789012345678901234567890")),
		"too short":       base64.RawURLEncoding.EncodeToString(make([]byte, nonceSize+tagSize-1)),
		"header only":     base64.RawURLEncoding.EncodeToString(make([]byte, nonceSize+tagSize)),
		"random garbage":  base64.RawURLEncoding.EncodeToString([]byte(strings.Repeat("x", 80))),
		"unicode garbage": "ключ",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				got, ok := c.Decode(in)
				assert.False(t, ok)
				assert.Empty(t, got)
			})
		})
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	c, _ := newTestCodec(t, "test-secret", time.Hour)
	future := `1999999999999`

	payloads := map[string]string{
		"not json":          `not-json`,
		"missing key":       `{"exp":` + future + `}`,
		"missing exp":       `{"k":"` + testKey + `"}`,
		"key wrong type":    `{"exp":` + future + `,"k":12345}`,
		"exp wrong type":    `{"exp":"` + future + `","k":"` + testKey + `"}`,
		"exp fractional":    `{"exp":1999999999999.5,"k":"` + testKey + `"}`,
		"malformed key":     `{"exp":` + future + `,"k":"sk_live_0123456789abcdef"}`,
		"short key":         `{"exp":` + future + `,"k":"key_x"}`,
		"null fields":       `{"exp":null,"k":null}`,
		"array payload":     `[1,2,3]`,
		"exp in the past":   `{"exp":1000,"k":"` + testKey + `"}`,
	}
	for name, p := range payloads {
		t.Run(name, func(t *testing.T) {
			got, ok := c.Decode(seal(t, c, []byte(p)))
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}

	// Sanity: a well-formed hand-sealed payload does decode.
	got, ok := c.Decode(seal(t, c, []byte(`{"exp":`+future+`,"k":"`+testKey+`"}`)))
	require.True(t, ok)
	assert.Equal(t, testKey, got)
}

func TestDifferentSecretsDoNotInteroperate(t *testing.T) {
	a, _ := newTestCodec(t, "secret-a", time.Hour)
	b, _ := newTestCodec(t, "secret-b", time.Hour)
	a2, _ := newTestCodec(t, "  secret-a  ", time.Hour)

	tok, err := a.Mint(testKey)
	require.NoError(t, err)

	_, ok := b.Decode(tok)
	assert.False(t, ok)

	got, ok := a2.Decode(tok)
	assert.True(t, ok, "secret is trimmed before key derivation")
	assert.Equal(t, testKey, got)
}

func TestEphemeralKeyIsProcessLocal(t *testing.T) {
	e1, _ := newTestCodec(t, "", time.Hour)
	e2, _ := newTestCodec(t, "", time.Hour)
	s, _ := newTestCodec(t, "configured", time.Hour)

	assert.True(t, e1.Ephemeral())
	assert.False(t, s.Ephemeral())

	tok, err := e1.Mint(testKey)
	require.NoError(t, err)

	got, ok := e2.Decode(tok)
	assert.True(t, ok, "codecs in one process share the process key")
	assert.Equal(t, testKey, got)

	_, ok = s.Decode(tok)
	assert.False(t, ok)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestMintPropagatesEntropyFailure(t *testing.T) {
	c, err := NewCodec(Config{Secret: "s", TTL: time.Hour}, WithRandom(failingReader{}))
	require.NoError(t, err)

	_, err = c.Mint(testKey)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
