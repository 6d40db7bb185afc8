// Package tools binds the MCP tool surface to the remote agent API, the wait
// orchestrator and the token codec.
package tools

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"agentmcp/internal/agentapi"
	"agentmcp/internal/credential"
	"agentmcp/internal/mcp"
	"agentmcp/internal/wait"

	goerrors "github.com/goliatone/go-errors"
)

// Client is the remote API surface the tools call. *agentapi.Client
// implements it.
type Client interface {
	wait.JobClient
	agentapi.Catalog
	ListAgents(ctx context.Context, limit int, cursor string) (agentapi.ListAgentsResponse, error)
	DeleteAgent(ctx context.Context, id string) (agentapi.IDResponse, error)
	AddFollowup(ctx context.Context, id, prompt string) (agentapi.IDResponse, error)
	GetConversation(ctx context.Context, id string) (agentapi.Conversation, error)
	Me(ctx context.Context) (agentapi.KeyInfo, error)
}

// ClientFactory builds a Client that authenticates as cred.
type ClientFactory func(cred credential.Credential) Client

// APIClientFactory returns a factory for real clients against baseURL.
func APIClientFactory(baseURL string, opts ...agentapi.ClientOption) ClientFactory {
	return func(cred credential.Credential) Client {
		return agentapi.NewClient(baseURL, cred, opts...)
	}
}

// Minter mints tokens for the mint_token tool. *token.Codec implements it.
type Minter interface {
	Mint(key credential.Credential) (string, error)
	ExpiresAt(token string) (time.Time, bool)
	TTL() time.Duration
}

// WaitDefaults fill in create_and_wait arguments the caller omits.
type WaitDefaults struct {
	PollInterval time.Duration
	Timeout      time.Duration
	// MinPollInterval raises smaller caller-supplied intervals. Zero means
	// no floor.
	MinPollInterval time.Duration
	// MaxTimeout caps caller-supplied timeouts. Zero means no cap.
	MaxTimeout time.Duration
}

// Deps wires the tools to their collaborators.
type Deps struct {
	Clients      ClientFactory
	Orchestrator *wait.Orchestrator
	Minter       Minter
	Catalog      *agentapi.CatalogCache
	Defaults     WaitDefaults
}

type (
	credentialKey       struct{}
	credentialSourceKey struct{}
)

// WithCredential attaches the caller's resolved credential to ctx.
func WithCredential(ctx context.Context, cred credential.Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, strings.TrimSpace(cred))
}

// CredentialFrom returns the credential attached by WithCredential.
func CredentialFrom(ctx context.Context) credential.Credential {
	cred, _ := ctx.Value(credentialKey{}).(credential.Credential)
	return cred
}

// WithCredentialSource records which resolution step produced the credential.
func WithCredentialSource(ctx context.Context, src credential.Source) context.Context {
	return context.WithValue(ctx, credentialSourceKey{}, src)
}

// CredentialSourceFrom returns the source attached by WithCredentialSource,
// or "" when none was attached.
func CredentialSourceFrom(ctx context.Context) credential.Source {
	src, _ := ctx.Value(credentialSourceKey{}).(credential.Source)
	return src
}

// Register adds every tool to s.
func Register(s *mcp.Server, deps Deps) {
	h := &handlers{deps: deps}
	if h.deps.Catalog == nil {
		h.deps.Catalog = agentapi.NewCatalogCache(agentapi.DefaultCatalogTTL)
	}

	s.RegisterTool(listAgentsTool, h.listAgents)
	s.RegisterTool(getAgentTool, h.getAgent)
	s.RegisterTool(createAgentTool, h.createAgent)
	s.RegisterTool(deleteAgentTool, h.deleteAgent)
	s.RegisterTool(addFollowupTool, h.addFollowup)
	s.RegisterTool(getConversationTool, h.getConversation)
	s.RegisterTool(getMeTool, h.getMe)
	s.RegisterTool(listModelsTool, h.listModels)
	s.RegisterTool(listRepositoriesTool, h.listRepositories)
	s.RegisterTool(createAndWaitTool, h.createAndWait)
	s.RegisterTool(cancelWaitTokenTool, h.cancelWaitToken)
	s.RegisterTool(mintTokenTool, h.mintToken)
}

type handlers struct {
	deps Deps
}

// ErrNoCredentialMessage is the single answer for a missing credential,
// whether none was sent or a token failed to decode.
const ErrNoCredentialMessage = "no credential: supply an API key or a valid token"

func noCredential() error {
	return goerrors.New(ErrNoCredentialMessage, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode("UNAUTHORIZED")
}

func (h *handlers) client(ctx context.Context) (Client, error) {
	cred := CredentialFrom(ctx)
	if cred == "" {
		return nil, noCredential()
	}
	return h.deps.Clients(cred), nil
}

// remoteError surfaces remote API failures in the service error taxonomy.
func remoteError(err error) error {
	var apiErr *agentapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ToServiceError()
	}
	return err
}
