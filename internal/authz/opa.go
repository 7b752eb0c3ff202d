package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kestrel-sec/authgate/internal/apperr"
)

// Sections are the replaceable OPA data documents. Updates are section
// scoped: writing one never touches another.
var Sections = []string{"permissions", "group_permissions", "users", "organizations", "resources"}

// OPA is the attribute-backend client. Decisions go to the fixed policy
// evaluation path; data and policy mutations use the REST data/policy API.
type OPA struct {
	baseURL string
	hc      *http.Client
}

// NewOPA builds a client for the OPA instance at baseURL.
func NewOPA(baseURL string) *OPA {
	return &OPA{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *OPA) Backend() Backend { return BackendAttribute }

// Check submits the decision input to /v1/data/authz/allow. Any transport
// failure, non-200 status, or absent result field is a denial; the error
// return distinguishes upstream failure from a plain deny for diagnostics.
func (o *OPA) Check(ctx context.Context, in Input) (Decision, error) {
	body, err := json.Marshal(map[string]any{"input": in})
	if err != nil {
		return Decision{Reason: "encode_failed"}, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/data/authz/allow", bytes.NewReader(body))
	if err != nil {
		return Decision{Reason: "request_failed"}, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.hc.Do(req)
	if err != nil {
		return Decision{Reason: "opa_unreachable"}, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{Reason: "opa_status"}, fmt.Errorf("%w: opa returned %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var verdict struct {
		Result *bool `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return Decision{Reason: "verdict_malformed"}, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if verdict.Result == nil {
		// No allow rule evaluated. Deny, but the PDP itself is healthy.
		return Decision{Reason: "verdict_missing"}, nil
	}
	if !*verdict.Result {
		return Decision{Reason: "policy_denied"}, nil
	}
	return Decision{Allowed: true}, nil
}

// Grant inserts {target: {resource: {permission: true}}} into the stored
// permissions section, preserving everything already recorded for the same
// user or resource, and writes the full section back.
//
// The read and the write are two PDP calls with no lock between them:
// concurrent grants to the same section can race and the later write wins.
func (o *OPA) Grant(ctx context.Context, targetUser, resourceID, permission string) (GrantResult, error) {
	perms, err := o.readSection(ctx, "permissions")
	if err != nil {
		return GrantResult{}, err
	}

	userPerms, _ := perms[targetUser].(map[string]any)
	if userPerms == nil {
		userPerms = map[string]any{}
		perms[targetUser] = userPerms
	}
	resPerms, _ := userPerms[resourceID].(map[string]any)
	if resPerms == nil {
		resPerms = map[string]any{}
		userPerms[resourceID] = resPerms
	}
	resPerms[permission] = true

	if err := o.writeSection(ctx, "permissions", perms); err != nil {
		return GrantResult{}, err
	}
	return GrantResult{Status: StatusNewlyGranted}, nil
}

// UpdateSections applies a full replace for every known section present in
// body, in a fixed order. Unknown keys are ignored, so partial payloads that
// only touch a subset of sections are fine. The first failing write aborts
// the call; the caller must not assume any section was applied.
func (o *OPA) UpdateSections(ctx context.Context, body map[string]json.RawMessage) ([]string, error) {
	var updated []string
	for _, section := range Sections {
		doc, ok := body[section]
		if !ok {
			continue
		}
		if err := o.putRaw(ctx, "/v1/data/"+section, "application/json", []byte(doc)); err != nil {
			return nil, err
		}
		updated = append(updated, section)
	}
	return updated, nil
}

// UpdatePolicy pushes a raw policy source under the named slot.
func (o *OPA) UpdatePolicy(ctx context.Context, name, source string) error {
	if source == "" {
		return fmt.Errorf("%w: policy source is required", apperr.ErrInvalidArgument)
	}
	if name == "" {
		name = "authz"
	}
	return o.putRaw(ctx, "/v1/policies/"+name, "text/plain", []byte(source))
}

// Data returns the raw document under /v1/data/<path> for introspection.
func (o *OPA) Data(ctx context.Context, path string) (json.RawMessage, error) {
	p := "/v1/data"
	if path != "" {
		p += "/" + strings.Trim(path, "/")
	}
	return o.getRaw(ctx, p)
}

// Policies returns the raw policy listing.
func (o *OPA) Policies(ctx context.Context) (json.RawMessage, error) {
	return o.getRaw(ctx, "/v1/policies")
}

// Query evaluates an arbitrary data path against the given input.
func (o *OPA) Query(ctx context.Context, path string, input map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/data/"+strings.Trim(path, "/"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return o.do(req)
}

func (o *OPA) readSection(ctx context.Context, section string) (map[string]any, error) {
	raw, err := o.getRaw(ctx, "/v1/data/"+section)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if envelope.Result == nil {
		return map[string]any{}, nil
	}
	return envelope.Result, nil
}

func (o *OPA) writeSection(ctx context.Context, section string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return o.putRaw(ctx, "/v1/data/"+section, "application/json", body)
}

func (o *OPA) getRaw(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return o.do(req)
}

func (o *OPA) putRaw(ctx context.Context, path, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	_, err = o.do(req)
	return err
}

func (o *OPA) do(req *http.Request) (json.RawMessage, error) {
	resp, err := o.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("%w: opa %s %s returned %d", apperr.ErrUpstreamUnavailable, req.Method, req.URL.Path, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return raw, nil
}
