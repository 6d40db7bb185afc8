package credential

import (
	"net/http"
	"net/url"
	"strings"
)

// Request surfaces and field names that may carry a credential.
const (
	TokenQueryParam = "token"
	TokenHeader     = "X-MCP-Token"

	// DelegatedAuthHeader is set by OAuth-fronting proxies. Its presence means
	// the Authorization header carries a delegated access token, not an API key.
	DelegatedAuthHeader = "X-Auth-Provider"
)

type field struct {
	from string // "header", "query" or "body"
	name string
}

// directFields are checked in order after the token and bearer channels.
var directFields = []field{
	{"header", "X-Api-Key"},
	{"header", "X-Cursor-Api-Key"},
	{"query", "api_key"},
	{"query", "apiKey"},
	{"body", "apiKey"},
	{"body", "api_key"},
}

// Source identifies which precedence step produced a credential.
type Source string

const (
	SourceToken    Source = "token"
	SourceBearer   Source = "bearer"
	SourceDirect   Source = "direct"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// TokenDecoder decodes a zero-storage token. Any failure is reported as
// ok=false and never as an error.
type TokenDecoder interface {
	Decode(token string) (Credential, bool)
}

// Request is the read-only view of an inbound request used for resolution.
type Request struct {
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

// RequestFromHTTP builds a Request from r. body is the already-decoded JSON
// body and may be nil.
func RequestFromHTTP(r *http.Request, body map[string]any) Request {
	return Request{
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	}
}

// Resolver picks the effective credential for a request. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	tokens TokenDecoder
}

// NewResolver returns a Resolver that decodes tokens with tokens. A nil
// decoder disables the token channel.
func NewResolver(tokens TokenDecoder) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve returns the credential req should act with, or fallback.
func (r *Resolver) Resolve(req Request, fallback Credential) Credential {
	c, _ := r.ResolveWithSource(req, fallback)
	return c
}

// ResolveWithSource is Resolve plus the precedence step that matched.
//
// Order: token (query, then header), bearer API key, direct fields, fallback.
// A token that fails to decode is treated exactly like a missing token: the
// bearer and direct steps still run before the fallback is considered.
func (r *Resolver) ResolveWithSource(req Request, fallback Credential) (Credential, Source) {
	if c, ok := r.fromToken(req); ok {
		return c, SourceToken
	}
	if c, ok := fromBearer(req); ok {
		return c, SourceBearer
	}
	for _, f := range directFields {
		if c := lookup(req, f); c != "" {
			return c, SourceDirect
		}
	}
	if fallback != "" {
		return fallback, SourceFallback
	}
	return "", SourceNone
}

func (r *Resolver) fromToken(req Request) (Credential, bool) {
	if r.tokens == nil {
		return "", false
	}
	for _, raw := range []string{
		strings.TrimSpace(req.Query.Get(TokenQueryParam)),
		strings.TrimSpace(req.Header.Get(TokenHeader)),
	} {
		if raw == "" {
			continue
		}
		if c, ok := r.tokens.Decode(raw); ok {
			return c, true
		}
	}
	return "", false
}

func fromBearer(req Request) (Credential, bool) {
	if strings.TrimSpace(req.Header.Get(DelegatedAuthHeader)) != "" {
		return "", false
	}
	v := bearerToken(req.Header.Get("Authorization"))
	if v == "" || !strings.HasPrefix(v, Prefix) {
		return "", false
	}
	return v, true
}

func bearerToken(h string) string {
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func lookup(req Request, f field) string {
	switch f.from {
	case "header":
		return strings.TrimSpace(req.Header.Get(f.name))
	case "query":
		return strings.TrimSpace(req.Query.Get(f.name))
	case "body":
		if req.Body == nil {
			return ""
		}
		s, _ := req.Body[f.name].(string)
		return strings.TrimSpace(s)
	}
	return ""
}
