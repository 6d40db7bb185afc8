package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"agentmcp/internal/credential"
	"agentmcp/internal/log"
	"agentmcp/internal/tools"
)

const maxTokenBodyBytes = 64 << 10

// handleMintToken seals the apiKey from the JSON body, or else the
// credential the request itself carries. The configured default key is
// never minted.
func (s server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	var fields map[string]any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	key, _ := fields["apiKey"].(string)
	key = strings.TrimSpace(key)
	if key == "" {
		key = s.resolver.Resolve(credential.RequestFromHTTP(r, fields), "")
	}

	out, err := tools.Mint(s.minter, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info(log.CatAuth, "token minted", "credential", credential.Mask(key), "ttl_ms", out.TTLMs)
	writeJSON(w, http.StatusOK, out)
}
