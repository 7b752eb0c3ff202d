package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kestrel-sec/authgate/internal/apperr"
	"github.com/kestrel-sec/authgate/internal/authz"
	"github.com/kestrel-sec/authgate/internal/httpx"
	"github.com/kestrel-sec/authgate/internal/identity"
	"github.com/kestrel-sec/authgate/internal/metrics"
	"github.com/kestrel-sec/authgate/internal/trace"
)

// GrantHandler applies caller-authorized permission grants. The caller must
// first pass a decision under the elevated grant action; only then is the
// mutation attempted.
type GrantHandler struct {
	Auth    authz.Authorizer
	Granter authz.Granter
}

func NewGrantHandler(a authz.Authorizer, g authz.Granter) *GrantHandler {
	return &GrantHandler{Auth: a, Granter: g}
}

type grantRequest struct {
	User     string `json:"user"`
	Relation string `json:"relation"`
}

func (h *GrantHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	resourceID := chi.URLParam(r, "resourceID")

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.User == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing target user")
		return
	}
	backend := h.Auth.Backend()
	if req.Relation == "" {
		req.Relation = authz.DefaultGrantRelation(backend)
	}

	hints := map[string]any{
		"resource_type":    "document",
		"grant_type":       "permission_delegation",
		"target_user":      req.User,
		"permission_level": req.Relation,
		"department":       "engineering",
	}
	in := authz.BuildGrantInput(backend, id, resourceID, r.Method, hints)

	rh := ResourceHandler{Auth: h.Auth}
	if !rh.allowed(r, in) {
		httpx.WriteError(w, http.StatusForbidden, "only resource owners can grant access")
		return
	}

	res, err := h.Granter.Grant(r.Context(), req.User, resourceID, req.Relation)
	if err != nil {
		slog.Error("grant_failed",
			"trace", trace.From(r.Context()),
			"backend", string(backend),
			"target", req.User,
			"resource", resourceID,
			"relation", req.Relation,
			"err", httpx.SafeErrMsg(err),
		)
		if errors.Is(err, apperr.ErrInvalidArgument) {
			httpx.WriteAppError(w, err, "invalid grant request")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "failed to grant access")
		return
	}

	metrics.Grants.WithLabelValues(string(backend), res.Status).Inc()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":    grantMessage(res.Status),
		"granted_to": req.User,
		"relation":   req.Relation,
		"resource":   resourceID,
		"status":     res.Status,
	})
}

func grantMessage(status string) string {
	if status == authz.StatusAlreadyExists {
		return "Access already granted (no change needed)"
	}
	return "Access granted successfully"
}
