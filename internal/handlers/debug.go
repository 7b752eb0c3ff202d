package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrel-sec/authgate/internal/authz"
	"github.com/kestrel-sec/authgate/internal/httpx"
)

// DebugHandler exposes gateway and PDP introspection for operators. Not part
// of the protected surface; keep it off the public listener.
type DebugHandler struct {
	Backend       authz.Backend
	OPAURL        string
	FGAAPIURL     string
	IntrospectURL string
	CredsDir      string

	OPA   *authz.OPA     // nil unless the attribute backend is active
	Graph *authz.OpenFGA // nil unless the graph backend is active
}

func (h *DebugHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg := map[string]any{
		"backend":        h.Backend,
		"introspect_url": h.IntrospectURL,
	}
	switch h.Backend {
	case authz.BackendGraph:
		cfg["fga_api_url"] = h.FGAAPIURL
		if h.Graph != nil {
			cfg["fga_store_id"] = h.Graph.StoreID()
		}
	default:
		cfg["opa_url"] = h.OPAURL
	}
	httpx.WriteJSON(w, http.StatusOK, cfg)
}

func (h *DebugHandler) Data(w http.ResponseWriter, r *http.Request) {
	raw, err := h.OPA.Data(r.Context(), "")
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to read data")
		return
	}
	writeRaw(w, raw)
}

func (h *DebugHandler) Policies(w http.ResponseWriter, r *http.Request) {
	raw, err := h.OPA.Policies(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to read policies")
		return
	}
	writeRaw(w, raw)
}

func (h *DebugHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path  string         `json:"path"`
		Input map[string]any `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		req.Path = "authz/allow"
	}
	raw, err := h.OPA.Query(r.Context(), req.Path, req.Input)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeRaw(w, raw)
}

func (h *DebugHandler) Tuples(w http.ResponseWriter, r *http.Request) {
	tuples, err := h.Graph.ReadTuples(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to read tuples")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"tuples": tuples,
		"total":  len(tuples),
	})
}

// Credentials reads the OAuth2 client credentials the provisioner drops in
// the shared directory.
func (h *DebugHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	clientID, idOK := readShared(h.CredsDir, "hydra-client-id")
	clientSecret, secretOK := readShared(h.CredsDir, "hydra-client-secret")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"client_id":                 clientID,
		"client_secret":             clientSecret,
		"client_id_file_exists":     idOK,
		"client_secret_file_exists": secretOK,
	})
}

func readShared(dir, name string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
