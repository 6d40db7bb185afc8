package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"agentmcp/internal/credential"
	"agentmcp/internal/log"
	"agentmcp/internal/tools"

	"github.com/go-chi/chi/v5/middleware"
)

const maxMCPBodyBytes = 1 << 20

// handleMCP serves one JSON-RPC message per POST. The credential is resolved
// here and travels to the tools in the request context; a request without
// one is still dispatched so that initialize and tools/list work anonymously.
func (s server) handleMCP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMCPBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body failed"})
		return
	}

	// Non-object bodies carry no credential fields; the MCP server reports
	// them as parse errors.
	var fields map[string]any
	_ = json.Unmarshal(body, &fields)

	cred, source := s.resolver.ResolveWithSource(credential.RequestFromHTTP(r, fields), s.defaultKey)
	log.Debug(log.CatAuth, "credential resolved",
		"req_id", middleware.GetReqID(r.Context()),
		"source", source,
		"credential", credential.Mask(cred))

	ctx := tools.WithCredentialSource(tools.WithCredential(r.Context(), cred), source)
	resp := s.mcp.HandleBytes(ctx, body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		logError(r.Context(), "write mcp response failed", err)
	}
}
