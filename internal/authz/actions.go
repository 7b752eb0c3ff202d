package authz

import (
	"fmt"
	"strings"

	"github.com/kestrel-sec/authgate/internal/apperr"
)

// attributeActions maps HTTP verbs to OPA actions. The attribute policy can
// reason about arbitrary actions, so unmapped verbs fall back to the verb
// itself lower-cased.
var attributeActions = map[string]string{
	"GET":    "read",
	"POST":   "create",
	"PUT":    "update",
	"PATCH":  "update",
	"DELETE": "delete",
}

// graphRelations maps HTTP verbs to FGA relations. The relation vocabulary is
// closed at model-definition time, so unmapped verbs are an error.
var graphRelations = map[string]string{
	"GET":    "can_view",
	"POST":   "can_edit",
	"PUT":    "can_edit",
	"PATCH":  "can_edit",
	"DELETE": "owner",
}

// MapAction resolves the permission required for verb under the given
// backend. Deterministic; the per-backend fallback asymmetry is deliberate.
func MapAction(b Backend, verb string) (string, error) {
	v := strings.ToUpper(verb)
	if b == BackendGraph {
		rel, ok := graphRelations[v]
		if !ok {
			return "", fmt.Errorf("%w: no relation for verb %q", apperr.ErrUnsupportedOperation, verb)
		}
		return rel, nil
	}
	if a, ok := attributeActions[v]; ok {
		return a, nil
	}
	return strings.ToLower(verb), nil
}

// GrantAction is the elevated permission a caller must hold to grant access
// to someone else. The graph model has no dedicated grant action, so
// ownership stands in for it there.
func GrantAction(b Backend) string {
	if b == BackendGraph {
		return "owner"
	}
	return "grant_permission"
}

// DefaultGrantRelation is the permission granted when the caller omits one.
func DefaultGrantRelation(b Backend) string {
	if b == BackendGraph {
		return "can_view"
	}
	return "read"
}
