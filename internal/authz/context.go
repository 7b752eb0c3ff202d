package authz

import (
	"time"

	"github.com/kestrel-sec/authgate/internal/identity"
)

// reserved are input fields a caller-supplied hint must not shadow.
var reserved = map[string]struct{}{
	"subject":   {},
	"object":    {},
	"action":    {},
	"method":    {},
	"timestamp": {},
}

// BuildInput assembles the decision input for a regular resource operation.
// The action comes from the backend's verb table; hints are merged into the
// attribute bag as-is, minus any key that would shadow a reserved field.
func BuildInput(b Backend, id *identity.Identity, resourceID, verb string, hints map[string]any) (Input, error) {
	action, err := MapAction(b, verb)
	if err != nil {
		return Input{}, err
	}
	return newInput(id, resourceID, verb, action, hints), nil
}

// BuildGrantInput assembles the decision input for a grant operation. The
// action is the fixed elevated grant permission so that granting is decided
// under its own policy rule, distinct from generic write access.
func BuildGrantInput(b Backend, id *identity.Identity, resourceID, verb string, hints map[string]any) Input {
	return newInput(id, resourceID, verb, GrantAction(b), hints)
}

func newInput(id *identity.Identity, resourceID, verb, action string, hints map[string]any) Input {
	attrs := make(map[string]any, len(hints))
	for k, v := range hints {
		if _, ok := reserved[k]; ok {
			continue
		}
		attrs[k] = v
	}
	return Input{
		Subject:    id.Subject,
		Object:     resourceID,
		Action:     action,
		Verb:       verb,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Attributes: attrs,
	}
}
