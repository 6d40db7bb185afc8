package httpapi

import (
	"encoding/json"
	"net/http"

	"agentmcp/internal/credential"
	"agentmcp/internal/mcp"
	"agentmcp/internal/tools"

	goerrors "github.com/goliatone/go-errors"
)

type server struct {
	mcp        *mcp.Server
	resolver   *credential.Resolver
	minter     tools.Minter
	defaultKey credential.Credential
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logErrorNoCtx("writeJSON encode failed", err)
	}
}

// writeError renders err with the status its go-errors code carries.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		logError(r.Context(), "request failed", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	status := rich.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		logError(r.Context(), "request failed", err)
	}
	body := map[string]any{"error": mcp.ErrorText(rich)}
	if rich.TextCode != "" {
		body["code"] = rich.TextCode
	}
	writeJSON(w, status, body)
}
