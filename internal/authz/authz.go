// Package authz holds the decision and mutation contracts the gateway speaks
// to its policy decision points, plus the two backend clients (OPA and
// OpenFGA) that implement them.
package authz

import (
	"context"
	"strings"
)

// Backend selects which PDP model a client speaks.
type Backend string

const (
	// BackendAttribute evaluates structured decision-input documents (OPA).
	BackendAttribute Backend = "opa"
	// BackendGraph checks subject-relation-object tuples (OpenFGA).
	BackendGraph Backend = "fga"
)

// Input is the decision-input document built once per request. Action is
// always derived through MapAction or GrantAction, never caller-supplied.
// Attributes is an open bag; the gateway only injects the keys it owns.
type Input struct {
	Subject    string         `json:"subject"`
	Object     string         `json:"object"`
	Action     string         `json:"action"`
	Verb       string         `json:"method"`
	Timestamp  string         `json:"timestamp"`
	Attributes map[string]any `json:"attributes"`
}

// Decision is a verdict. Reason is for diagnostics only and is never leaked
// to the original requester.
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorizer renders an allow/deny verdict for one decision input. An error
// means the PDP could not be consulted; callers treat that exactly like a
// denial in the response they give back.
type Authorizer interface {
	Backend() Backend
	Check(ctx context.Context, in Input) (Decision, error)
}

// Grant statuses. A duplicate grant is a success, not an error.
const (
	StatusNewlyGranted  = "newly_granted"
	StatusAlreadyExists = "already_exists"
)

// GrantResult reports how a grant was applied.
type GrantResult struct {
	Status string
}

// Granter applies a permission grant for targetUser on resourceID. The
// relation is backend vocabulary: an OPA permission name or an FGA relation.
type Granter interface {
	Grant(ctx context.Context, targetUser, resourceID, relation string) (GrantResult, error)
}

// Tuple is one relationship-graph edge.
type Tuple struct {
	Subject  string `json:"user"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// SubjectRef normalizes a caller-supplied subject to a typed graph reference,
// so a grant target given as "carol" is checkable as "user:carol".
func SubjectRef(subject string) string {
	if strings.Contains(subject, ":") {
		return subject
	}
	return "user:" + subject
}

// ObjectRef builds the typed graph reference for a resource identifier.
func ObjectRef(resourceID string) string {
	return "resource:" + resourceID
}
