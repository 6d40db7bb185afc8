package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"agentmcp/internal/log"
	"agentmcp/internal/tracing"

	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const maxLineBytes = 1 << 20

// ToolHandler handles a tool call. Returned errors are reported to the caller
// as an isError tool result.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*ToolCallResult, error)

// Server dispatches MCP requests to registered tools. It is safe for
// concurrent use; the HTTP transport calls HandleBytes from many goroutines.
type Server struct {
	info         ImplementationInfo
	instructions string
	tracer       trace.Tracer

	mu       sync.RWMutex
	tools    map[string]Tool
	handlers map[string]ToolHandler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithInstructions sets the instructions sent during initialization.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithTracer records one span per tool call.
func WithTracer(t trace.Tracer) ServerOption {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewServer creates a new MCP server.
func NewServer(name, version string, opts ...ServerOption) *Server {
	s := &Server{
		info:     ImplementationInfo{Name: name, Version: version},
		tracer:   noop.NewTracerProvider().Tracer("mcp"),
		tools:    make(map[string]Tool),
		handlers: make(map[string]ToolHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTool registers a tool with its handler, replacing any tool of the
// same name.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.Name] = tool
	s.handlers[tool.Name] = handler
	log.Debug(log.CatMCP, "Registered tool", "name", tool.Name)
}

// Tools returns the registered tools sorted by name.
func (s *Server) Tools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tools := make([]Tool, 0, len(s.tools))
	for _, tool := range s.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// HandleBytes processes one JSON-RPC message and returns the encoded
// response. Notifications produce a nil response.
func (s *Server) HandleBytes(ctx context.Context, body []byte) []byte {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return encode(fail(nil, rpcError(ErrCodeParseError, err.Error())))
	}
	if req.IsNotification() {
		s.handleNotification(&req)
		return nil
	}
	return encode(s.handleRequest(ctx, &req))
}

// Serve reads newline-delimited JSON-RPC messages from r and writes
// responses to w until r is exhausted or ctx ends. Requests run
// concurrently so a long tool call does not block the ones behind it;
// responses may therefore arrive out of order, matched by id.
//
// When ctx ends, r is closed if it is an io.Closer. The reading goroutine
// may be blocked in Read; a reader that cannot be closed keeps it until the
// next line or EOF arrives.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	write := func(data []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := w.Write(append(data, '\n')); err != nil {
			log.Debug(log.CatMCP, "Failed to write response", "error", err)
		}
	}
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				wg.Wait()
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				return nil
			}
			if len(strings.TrimSpace(string(line))) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if resp := s.HandleBytes(ctx, line); resp != nil {
					write(resp)
				}
			}()
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != JSONRPCVersion {
		return fail(req.ID, rpcError(ErrCodeInvalidRequest, "jsonrpc must be \"2.0\""))
	}

	log.Debug(log.CatMCP, "Handling request", "method", req.Method)

	var result any
	var rpcErr *RPCError
	switch req.Method {
	case "initialize":
		result, rpcErr = s.handleInitialize(req.Params)
	case "tools/list":
		result = ToolsListResult{Tools: s.Tools()}
	case "tools/call":
		result, rpcErr = s.handleToolsCall(ctx, req.ID, req.Params)
	case "ping":
		result = struct{}{}
	default:
		rpcErr = rpcError(ErrCodeMethodNotFound, req.Method)
	}

	if rpcErr != nil {
		return fail(req.ID, rpcErr)
	}
	return reply(req.ID, result)
}

func (s *Server) handleNotification(req *Request) {
	switch req.Method {
	case "notifications/initialized":
		log.Debug(log.CatMCP, "Client initialized")
	default:
		log.Debug(log.CatMCP, "Ignoring notification", "method", req.Method)
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	var p struct {
		ProtocolVersion string             `json:"protocolVersion"`
		ClientInfo      ImplementationInfo `json:"clientInfo"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, rpcError(ErrCodeInvalidParams, err.Error())
		}
	}

	log.Debug(log.CatMCP, "Initialize request",
		"clientVersion", p.ProtocolVersion,
		"clientName", p.ClientInfo.Name)

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapability{Tools: &struct{}{}},
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, id json.RawMessage, params json.RawMessage) (any, *RPCError) {
	var p ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpcError(ErrCodeInvalidParams, err.Error())
	}

	s.mu.RLock()
	handler, ok := s.handlers[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, rpcError(ErrCodeToolNotFound, p.Name)
	}

	ctx, span := s.tracer.Start(ctx, tracing.SpanToolPrefix+p.Name, trace.WithAttributes(
		attribute.String(tracing.AttrMCPToolName, p.Name),
		attribute.String(tracing.AttrMCPRequestID, string(id)),
	))
	defer span.End()

	start := time.Now()
	result, err := handler(ctx, p.Arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug(log.CatMCP, "Tool execution failed", "name", p.Name, "error", err, "duration", time.Since(start))
		return ErrorResult(ErrorText(err)), nil
	}
	if result == nil {
		result = SuccessResult("")
	}
	log.Debug(log.CatMCP, "Tool executed", "name", p.Name, "duration", time.Since(start), "is_error", result.IsError)
	return result, nil
}

// ErrorText renders err for a tool result. Validation errors list their
// field messages.
func ErrorText(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return err.Error()
	}
	msg := strings.TrimSpace(rich.Message)
	if msg == "" {
		msg = err.Error()
	}
	var extra []string
	for _, f := range rich.AllValidationErrors() {
		if f.Message != "" && f.Message != msg {
			extra = append(extra, f.Field+": "+f.Message)
		}
	}
	if len(extra) > 0 {
		msg += " (" + strings.Join(extra, "; ") + ")"
	}
	return msg
}

func encode(resp *Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Debug(log.CatMCP, "Failed to marshal response", "error", err)
		data, _ = json.Marshal(fail(resp.ID, rpcError(ErrCodeInternalError, "failed to encode response")))
	}
	return data
}
