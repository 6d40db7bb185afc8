package tools

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"agentmcp/internal/mcp"

	goerrors "github.com/goliatone/go-errors"
)

func decodeArgs(args json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return invalid("arguments", "invalid arguments: "+err.Error())
	}
	return nil
}

func invalid(field, msg string) error {
	return goerrors.NewValidation(msg, goerrors.FieldError{
		Field:   field,
		Message: msg,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode("BAD_INPUT")
}

func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(field, field+" is required")
	}
	return value, nil
}

// jsonResult renders v as indented JSON text after summary, and as
// structured content.
func jsonResult(summary string, v any) *mcp.ToolCallResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.ErrorResult("encode result: " + err.Error())
	}
	text := string(b)
	if summary != "" {
		text = summary + "\n\n" + text
	}
	return mcp.StructuredResult(text, v)
}

func object(req []string, props map[string]*mcp.PropertySchema) *mcp.InputSchema {
	return &mcp.InputSchema{Type: "object", Properties: props, Required: req}
}

func str(desc string) *mcp.PropertySchema {
	return &mcp.PropertySchema{Type: "string", Description: desc}
}

func integer(desc string) *mcp.PropertySchema {
	return &mcp.PropertySchema{Type: "integer", Description: desc}
}

func number(desc string, lo, hi float64) *mcp.PropertySchema {
	return &mcp.PropertySchema{Type: "number", Description: desc, Minimum: &lo, Maximum: &hi}
}

func boolean(desc string) *mcp.PropertySchema {
	return &mcp.PropertySchema{Type: "boolean", Description: desc}
}
