// Package identity verifies bearer tokens against the external introspection
// authority and carries the verified identity through the request context.
package identity

import "context"

// Identity is the verified caller of one request. Built once per request,
// never persisted.
type Identity struct {
	Subject  string // human-readable principal when available
	ClientID string
	Scope    string
	Token    string // raw token, scheme stripped
}

type ctxKey struct{}

// NewContext returns ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stashed by the authentication middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok
}
