package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	s := NewServer("test-server", "1.0.0", WithInstructions("Use these tools"))
	s.RegisterTool(Tool{
		Name:        "echo",
		Description: "Echo the text argument",
		InputSchema: &InputSchema{
			Type:       "object",
			Properties: map[string]*PropertySchema{"text": {Type: "string"}},
			Required:   []string{"text"},
		},
	}, func(_ context.Context, args json.RawMessage) (*ToolCallResult, error) {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		return StructuredResult(in.Text, map[string]string{"text": in.Text}), nil
	})
	s.RegisterTool(Tool{Name: "fail", InputSchema: &InputSchema{Type: "object"}},
		func(context.Context, json.RawMessage) (*ToolCallResult, error) {
			return nil, errors.New("boom")
		})
	s.RegisterTool(Tool{Name: "invalid", InputSchema: &InputSchema{Type: "object"}},
		func(context.Context, json.RawMessage) (*ToolCallResult, error) {
			return nil, goerrors.NewValidation("invalid arguments", goerrors.FieldError{
				Field:   "prompt",
				Message: "prompt is required",
			})
		})
	return s
}

func call(t *testing.T, s *Server, body string) Response {
	t.Helper()
	raw := s.HandleBytes(context.Background(), []byte(body))
	require.NotNil(t, raw)
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func resultAs[T any](t *testing.T, resp Response) T {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected RPC error: %+v", resp.Error)
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestInitialize(t *testing.T) {
	s := newTestServer()
	resp := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"c","version":"1"}}}`)

	init := resultAs[InitializeResult](t, resp)
	require.Equal(t, ProtocolVersion, init.ProtocolVersion)
	require.Equal(t, "test-server", init.ServerInfo.Name)
	require.Equal(t, "Use these tools", init.Instructions)
	require.NotNil(t, init.Capabilities.Tools)
	require.JSONEq(t, `1`, string(resp.ID))
}

func TestToolsListIsSorted(t *testing.T) {
	s := newTestServer()
	list := resultAs[ToolsListResult](t, call(t, s, `{"jsonrpc":"2.0","id":"a","method":"tools/list"}`))

	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	require.Equal(t, []string{"echo", "fail", "invalid"}, names)
}

func TestToolsCall(t *testing.T) {
	s := newTestServer()
	res := resultAs[ToolCallResult](t, call(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`))

	require.False(t, res.IsError)
	require.Equal(t, "hi", res.Content[0].Text)
	require.Equal(t, map[string]any{"text": "hi"}, res.StructuredContent)
}

func TestToolErrorsBecomeErrorResults(t *testing.T) {
	s := newTestServer()

	res := resultAs[ToolCallResult](t, call(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"fail"}}`))
	require.True(t, res.IsError)
	require.Equal(t, "boom", res.Content[0].Text)

	res = resultAs[ToolCallResult](t, call(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"invalid"}}`))
	require.True(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "invalid arguments")
	require.Contains(t, res.Content[0].Text, "prompt: prompt is required")
}

func TestProtocolErrors(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{not json`, ErrCodeParseError},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, ErrCodeMethodNotFound},
		{"unknown tool", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`, ErrCodeToolNotFound},
		{"bad params", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":"x"}`, ErrCodeInvalidParams},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, tt.body)
			require.NotNil(t, resp.Error)
			require.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestNotificationsProduceNoResponse(t *testing.T) {
	s := newTestServer()
	require.Nil(t, s.HandleBytes(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	require.Nil(t, s.HandleBytes(context.Background(), []byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`)))
}

func TestHandlerReceivesContext(t *testing.T) {
	type key struct{}
	s := NewServer("t", "1")
	s.RegisterTool(Tool{Name: "ctx", InputSchema: &InputSchema{Type: "object"}},
		func(ctx context.Context, _ json.RawMessage) (*ToolCallResult, error) {
			v, _ := ctx.Value(key{}).(string)
			return SuccessResult(v), nil
		})

	ctx := context.WithValue(context.Background(), key{}, "carried")
	var resp Response
	require.NoError(t, json.Unmarshal(s.HandleBytes(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ctx"}}`)), &resp))
	require.Equal(t, "carried", resultAs[ToolCallResult](t, resp).Content[0].Text)
}

func TestServeStdio(t *testing.T) {
	s := newTestServer()
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"x"}}}`,
	}, "\n") + "\n"
	var out bytes.Buffer

	require.NoError(t, s.Serve(context.Background(), strings.NewReader(input), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	ids := map[string]bool{}
	for _, line := range lines {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		require.Nil(t, resp.Error)
		ids[string(resp.ID)] = true
	}
	require.Equal(t, map[string]bool{"1": true, "2": true}, ids)
}

// A blocked tool call must not hold up a later request on the same stream.
func TestServeRunsRequestsConcurrently(t *testing.T) {
	s := NewServer("t", "1")
	release := make(chan struct{})
	s.RegisterTool(Tool{Name: "block", InputSchema: &InputSchema{Type: "object"}},
		func(ctx context.Context, _ json.RawMessage) (*ToolCallResult, error) {
			<-release
			return SuccessResult("released"), nil
		})
	s.RegisterTool(Tool{Name: "unblock", InputSchema: &InputSchema{Type: "object"}},
		func(context.Context, json.RawMessage) (*ToolCallResult, error) {
			close(release)
			return SuccessResult("ok"), nil
		})

	pr, pw := io.Pipe()
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), pr, out) }()

	_, err := io.WriteString(pw, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"block"}}`+"\n")
	require.NoError(t, err)
	_, err = io.WriteString(pw, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"unblock"}}`+"\n")
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not finish")
	}
	require.Equal(t, 2, strings.Count(out.String(), "\n"))
}

func TestServeStopsOnContextCancel(t *testing.T) {
	s := newTestServer()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, pr, io.Discard) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	// The input is closed, so the blocked reader is released.
	_, err := pw.Write([]byte("{}\n"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
