package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kestrel-sec/authgate/internal/apperr"
)

// introspectionResult is the authority's success envelope.
type introspectionResult struct {
	Active            bool   `json:"active"`
	ClientID          string `json:"client_id,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Scope             string `json:"scope,omitempty"`
}

// Verifier exchanges a bearer token for a verified identity. Every call
// re-introspects; token lifetimes are assumed short enough that caching is
// not worth the staleness risk.
type Verifier struct {
	url string
	hc  *http.Client
}

// NewVerifier builds a verifier against the given introspection endpoint.
func NewVerifier(introspectURL string) *Verifier {
	return &Verifier{
		url: introspectURL,
		hc:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify resolves the Authorization header value to an identity. Anything
// that prevents a positive introspection fails with ErrUnauthenticated.
func (v *Verifier) Verify(ctx context.Context, authorization string) (*Identity, error) {
	if authorization == "" {
		return nil, fmt.Errorf("%w: missing token", apperr.ErrUnauthenticated)
	}
	token := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", apperr.ErrUnauthenticated)
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: introspection unreachable: %v", apperr.ErrUnauthenticated, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: introspection status %d", apperr.ErrUnauthenticated, resp.StatusCode)
	}

	var res introspectionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: malformed introspection response: %v", apperr.ErrUnauthenticated, err)
	}
	if !res.Active {
		return nil, fmt.Errorf("%w: token is not active", apperr.ErrUnauthenticated)
	}

	// Prefer a human-readable principal, fall back to the client id. A token
	// with neither is still a valid caller.
	subject := res.PreferredUsername
	if subject == "" {
		subject = res.ClientID
	}
	if subject == "" {
		subject = "unknown"
	}

	return &Identity{
		Subject:  subject,
		ClientID: res.ClientID,
		Scope:    res.Scope,
		Token:    token,
	}, nil
}
