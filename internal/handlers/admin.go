package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kestrel-sec/authgate/internal/apperr"
	"github.com/kestrel-sec/authgate/internal/authz"
	"github.com/kestrel-sec/authgate/internal/httpx"
	"github.com/kestrel-sec/authgate/internal/trace"
)

// AdminHandler pushes policy and data updates into the attribute PDP. Only
// mounted when the gateway runs the attribute backend; reachable only on the
// trusted network, like the PDP itself.
type AdminHandler struct {
	OPA *authz.OPA
}

func NewAdminHandler(o *authz.OPA) *AdminHandler {
	return &AdminHandler{OPA: o}
}

// UpdateData replaces the named data sections present in the payload.
// Either every named section is acknowledged or the call fails as a whole.
func (h *AdminHandler) UpdateData(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	updated, err := h.OPA.UpdateSections(r.Context(), body)
	if err != nil {
		slog.Error("sections_update_failed",
			"trace", trace.From(r.Context()),
			"err", httpx.SafeErrMsg(err),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update permissions")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":          "Permissions updated successfully",
		"updated_sections": updated,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

type policyRequest struct {
	Name   string `json:"name"`
	Policy string `json:"policy"`
}

// UpdatePolicy pushes a raw policy source under a named slot.
func (h *AdminHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.OPA.UpdatePolicy(r.Context(), req.Name, req.Policy); err != nil {
		if errors.Is(err, apperr.ErrInvalidArgument) {
			httpx.WriteError(w, http.StatusBadRequest, "policy content is required")
			return
		}
		slog.Error("policy_update_failed",
			"trace", trace.From(r.Context()),
			"policy", req.Name,
			"err", httpx.SafeErrMsg(err),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update policy")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Policy updated successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
