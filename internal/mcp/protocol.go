// Package mcp implements the Model Context Protocol server side: JSON-RPC 2.0
// framing, initialization, and tool listing and invocation.
//
// The same Server answers single HTTP request bodies (HandleBytes) and
// newline-delimited JSON over a stream (Serve).
package mcp

import "encoding/json"

const (
	ProtocolVersion = "2024-11-05"
	JSONRPCVersion  = "2.0"
)

// Request is a JSON-RPC 2.0 request, or a notification when ID is absent.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC error codes. ErrCodeToolNotFound is in the MCP reserved range.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
	ErrCodeToolNotFound   = -32001
)

var errorMessages = map[int]string{
	ErrCodeParseError:     "Parse error",
	ErrCodeInvalidRequest: "Invalid Request",
	ErrCodeMethodNotFound: "Method not found",
	ErrCodeInvalidParams:  "Invalid params",
	ErrCodeInternalError:  "Internal error",
	ErrCodeToolNotFound:   "Unknown tool",
}

func rpcError(code int, data any) *RPCError {
	return &RPCError{Code: code, Message: errorMessages[code], Data: data}
}

func reply(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func fail(id json.RawMessage, err *RPCError) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}

// InitializeResult answers initialize. The server only advertises tools.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapability   `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

type ServerCapability struct {
	Tools *struct{} `json:"tools,omitempty"`
}

// ImplementationInfo names an MCP client or server.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool is one entry of tools/list.
type Tool struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	InputSchema  *InputSchema  `json:"inputSchema"`
	OutputSchema *OutputSchema `json:"outputSchema,omitempty"`
}

// ObjectSchema is the JSON Schema of tool arguments or structured results.
type ObjectSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]*PropertySchema `json:"properties,omitempty"`
	Required   []string                   `json:"required,omitempty"`
}

type (
	InputSchema  = ObjectSchema
	OutputSchema = ObjectSchema
)

// PropertySchema describes one argument or result field.
type PropertySchema struct {
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult answers tools/call. A failed tool is still a successful
// JSON-RPC response with IsError set.
type ToolCallResult struct {
	Content           []ContentItem `json:"content"`
	IsError           bool          `json:"isError,omitempty"`
	StructuredContent any           `json:"structuredContent,omitempty"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func text(s string) []ContentItem {
	return []ContentItem{{Type: "text", Text: s}}
}

func SuccessResult(s string) *ToolCallResult {
	return &ToolCallResult{Content: text(s)}
}

func ErrorResult(s string) *ToolCallResult {
	return &ToolCallResult{Content: text(s), IsError: true}
}

// StructuredResult carries a text summary plus machine-readable content.
func StructuredResult(s string, structured any) *ToolCallResult {
	return &ToolCallResult{Content: text(s), StructuredContent: structured}
}
