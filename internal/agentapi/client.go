// Package agentapi is a client for the remote background agent REST API.
package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.cursor.com"

	maxResponseBytes = 1 << 20
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "agentmcp"
)

// HTTPClient is the subset of *http.Client the API client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(h HTTPClient) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// Client calls the remote API on behalf of a single credential.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      HTTPClient
}

// NewClient returns a Client that authenticates every call with apiKey.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   baseURL,
		apiKey:    strings.TrimSpace(apiKey),
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) ListAgents(ctx context.Context, limit int, cursor string) (ListAgentsResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		q.Set("cursor", cursor)
	}
	var out ListAgentsResponse
	err := c.do(ctx, http.MethodGet, "/v0/agents", q, nil, &out)
	return out, err
}

func (c *Client) GetAgent(ctx context.Context, id string) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodGet, "/v0/agents/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodPost, "/v0/agents", nil, req, &out)
	return out, err
}

func (c *Client) DeleteAgent(ctx context.Context, id string) (IDResponse, error) {
	var out IDResponse
	err := c.do(ctx, http.MethodDelete, "/v0/agents/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) AddFollowup(ctx context.Context, id, prompt string) (IDResponse, error) {
	var out IDResponse
	body := struct {
		Prompt Prompt `json:"prompt"`
	}{Prompt: Prompt{Text: prompt}}
	err := c.do(ctx, http.MethodPost, "/v0/agents/"+url.PathEscape(id)+"/followup", nil, body, &out)
	return out, err
}

func (c *Client) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var out Conversation
	err := c.do(ctx, http.MethodGet, "/v0/agents/"+url.PathEscape(id)+"/conversation", nil, nil, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (KeyInfo, error) {
	var out KeyInfo
	err := c.do(ctx, http.MethodGet, "/v0/me", nil, nil, &out)
	return out, err
}

func (c *Client) ListModels(ctx context.Context) (ModelList, error) {
	var out ModelList
	err := c.do(ctx, http.MethodGet, "/v0/models", nil, nil, &out)
	return out, err
}

func (c *Client) ListRepositories(ctx context.Context) (RepositoryList, error) {
	var out RepositoryList
	err := c.do(ctx, http.MethodGet, "/v0/repositories", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.apiKey == "" {
		return ErrNoCredential
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("agentapi: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return &transportError{err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Message:    errorMessage(b),
		}
	}
	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("agentapi: decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body, which is
// either {"error":"..."}, {"error":{"message":"..."}} or {"message":"..."}.
func errorMessage(b []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		s := strings.TrimSpace(string(b))
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	if len(body.Error) > 0 {
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return body.Message
}
