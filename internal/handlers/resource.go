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

// ResourceHandler decides access to protected resources. One decision per
// request: verify happened upstream in the middleware, here we map the verb,
// build the context, and ask the PDP.
type ResourceHandler struct {
	Auth authz.Authorizer
}

func NewResourceHandler(a authz.Authorizer) *ResourceHandler {
	return &ResourceHandler{Auth: a}
}

func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	hints := map[string]any{
		"resource_type":     "document",
		"sensitivity_level": "normal",
		"department":        "engineering",
	}
	h.decide(w, r, hints, "granted")
}

func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	sensitivity := "normal"
	if s, ok := body["sensitivity"].(string); ok && s != "" {
		sensitivity = s
	}
	hints := map[string]any{
		"resource_type":     "document",
		"sensitivity_level": sensitivity,
		"content_size":      len(body),
		"modification_type": "content_update",
		"department":        "engineering",
	}
	h.decide(w, r, hints, "updated")
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hints := map[string]any{
		"resource_type":    "document",
		"has_dependencies": false,
		"backup_available": true,
		"deletion_reason":  "user_request",
		"department":       "engineering",
	}
	h.decide(w, r, hints, "deleted")
}

func (h *ResourceHandler) decide(w http.ResponseWriter, r *http.Request, hints map[string]any, verdict string) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	resourceID := chi.URLParam(r, "resourceID")

	in, err := authz.BuildInput(h.Auth.Backend(), id, resourceID, r.Method, hints)
	if err != nil {
		if errors.Is(err, apperr.ErrUnsupportedOperation) {
			httpx.WriteAppError(w, err, "unsupported operation")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !h.allowed(r, in) {
		httpx.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"resource_id": resourceID,
		"access":      verdict,
		"user":        id.Subject,
		"action":      in.Action,
		"context":     in.Attributes,
	})
}

// allowed runs the check and folds PDP failure into a denial. The caller
// never learns whether the PDP said no or was unreachable; the log does.
func (h *ResourceHandler) allowed(r *http.Request, in authz.Input) bool {
	backend := string(h.Auth.Backend())
	dec, err := h.Auth.Check(r.Context(), in)
	if err != nil {
		metrics.Decisions.WithLabelValues(backend, metrics.OutcomeError).Inc()
		slog.Error("decision_error",
			"trace", trace.From(r.Context()),
			"backend", backend,
			"subject", in.Subject,
			"object", in.Object,
			"action", in.Action,
			"err", httpx.SafeErrMsg(err),
		)
		return false
	}
	outcome := metrics.OutcomeDeny
	if dec.Allowed {
		outcome = metrics.OutcomeAllow
	}
	metrics.Decisions.WithLabelValues(backend, outcome).Inc()
	slog.Info("decision",
		"trace", trace.From(r.Context()),
		"backend", backend,
		"subject", in.Subject,
		"object", in.Object,
		"action", in.Action,
		"allowed", dec.Allowed,
		"reason", dec.Reason,
	)
	return dec.Allowed
}
