package authz

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kestrel-sec/authgate/internal/apperr"
)

// fakeOPA is an in-memory stand-in for the OPA REST API: decision endpoint,
// data sections, and policy slots.
type fakeOPA struct {
	mu       sync.Mutex
	allow    *bool // nil means respond without a result field
	sections map[string]json.RawMessage
	policies map[string]string

	lastInput   map[string]any
	failSection string // section whose PUT returns 500
}

func newFakeOPA() *fakeOPA {
	return &fakeOPA{
		sections: map[string]json.RawMessage{},
		policies: map[string]string{},
	}
}

func (f *fakeOPA) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	dataSection := func(w http.ResponseWriter, r *http.Request) {
		section := strings.TrimPrefix(r.URL.Path, "/v1/data/")
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			doc, ok := f.sections[section]
			if !ok {
				doc = json.RawMessage(`{}`)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"result": json.RawMessage(doc)})
		case http.MethodPut:
			if section == f.failSection {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			b, _ := io.ReadAll(r.Body)
			f.sections[section] = b
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}

	mux.HandleFunc("/v1/data/authz/allow", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			dataSection(w, r)
			return
		}
		var body struct {
			Input map[string]any `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastInput = body.Input
		allow := f.allow
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if allow == nil {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": *allow})
	})

	mux.HandleFunc("/v1/data/", dataSection)

	mux.HandleFunc("/v1/policies/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/v1/policies/")
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.policies[name] = string(b)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeOPA) setAllow(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allow = &v
}

func (f *fakeOPA) section(name string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.sections[name]
	if !ok {
		return nil
	}
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)
	return doc
}

func attrInput(subject, object, action string) Input {
	return Input{
		Subject:    subject,
		Object:     object,
		Action:     action,
		Verb:       "GET",
		Timestamp:  "2026-01-01T00:00:00Z",
		Attributes: map[string]any{},
	}
}

func TestOPACheckAllowed(t *testing.T) {
	f := newFakeOPA()
	f.setAllow(true)
	o := NewOPA(f.server(t).URL)

	dec, err := o.Check(context.Background(), attrInput("alice", "doc1", "read"))
	if err != nil {
		t.Fatalf("Check error = %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("Allowed = false, want true")
	}
	if f.lastInput["subject"] != "alice" || f.lastInput["object"] != "doc1" || f.lastInput["action"] != "read" {
		t.Fatalf("decision input not forwarded: %v", f.lastInput)
	}
}

func TestOPACheckDenied(t *testing.T) {
	f := newFakeOPA()
	f.setAllow(false)
	o := NewOPA(f.server(t).URL)

	dec, err := o.Check(context.Background(), attrInput("alice", "doc1", "read"))
	if err != nil {
		t.Fatalf("a plain deny is not an upstream error, got %v", err)
	}
	if dec.Allowed {
		t.Fatalf("Allowed = true, want false")
	}
}

func TestOPACheckFailsClosedOnMissingResult(t *testing.T) {
	f := newFakeOPA() // allow stays nil: response has no result field
	o := NewOPA(f.server(t).URL)

	dec, err := o.Check(context.Background(), attrInput("alice", "doc1", "read"))
	if err != nil {
		t.Fatalf("missing result is a deny, not an upstream error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("missing result must never default to allow")
	}
}

func TestOPACheckFailsClosedOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	o := NewOPA(srv.URL)

	dec, err := o.Check(context.Background(), attrInput("alice", "doc1", "read"))
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if dec.Allowed {
		t.Fatalf("upstream failure must never default to allow")
	}
}

func TestOPACheckFailsClosedWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nobody listening anymore
	o := NewOPA(srv.URL)

	dec, err := o.Check(context.Background(), attrInput("alice", "doc1", "read"))
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if dec.Allowed {
		t.Fatalf("unreachable PDP must never default to allow")
	}
}

func TestOPAGrantMergesIntoExistingPermissions(t *testing.T) {
	f := newFakeOPA()
	f.sections["permissions"] = json.RawMessage(`{"alice":{"doc1":{"read":true}}}`)
	o := NewOPA(f.server(t).URL)

	res, err := o.Grant(context.Background(), "bob", "doc1", "write")
	if err != nil {
		t.Fatalf("Grant error = %v", err)
	}
	if res.Status != StatusNewlyGranted {
		t.Fatalf("status = %q, want %q", res.Status, StatusNewlyGranted)
	}

	perms := f.section("permissions")
	alice := perms["alice"].(map[string]any)["doc1"].(map[string]any)
	if alice["read"] != true {
		t.Fatalf("existing permission for alice was dropped: %v", perms)
	}
	bob := perms["bob"].(map[string]any)["doc1"].(map[string]any)
	if bob["write"] != true {
		t.Fatalf("new permission for bob missing: %v", perms)
	}
}

func TestOPAGrantExtendsSameUserSameResource(t *testing.T) {
	f := newFakeOPA()
	f.sections["permissions"] = json.RawMessage(`{"bob":{"doc1":{"read":true}}}`)
	o := NewOPA(f.server(t).URL)

	if _, err := o.Grant(context.Background(), "bob", "doc1", "write"); err != nil {
		t.Fatalf("Grant error = %v", err)
	}

	bob := f.section("permissions")["bob"].(map[string]any)["doc1"].(map[string]any)
	if bob["read"] != true || bob["write"] != true {
		t.Fatalf("permissions for bob/doc1 = %v, want read and write", bob)
	}
}

func TestOPAGrantFailsWhenPDPUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	o := NewOPA(srv.URL)

	if _, err := o.Grant(context.Background(), "bob", "doc1", "write"); !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestOPAUpdateSectionsIsSectionScoped(t *testing.T) {
	f := newFakeOPA()
	f.sections["organizations"] = json.RawMessage(`{"acme":{"tier":"gold"}}`)
	f.sections["users"] = json.RawMessage(`{"alice":{"groups":["eng"]}}`)
	o := NewOPA(f.server(t).URL)

	updated, err := o.UpdateSections(context.Background(), map[string]json.RawMessage{
		"permissions": json.RawMessage(`{"carol":{"doc2":{"read":true}}}`),
		"bogus":       json.RawMessage(`{}`), // unknown sections are ignored
	})
	if err != nil {
		t.Fatalf("UpdateSections error = %v", err)
	}
	if len(updated) != 1 || updated[0] != "permissions" {
		t.Fatalf("updated = %v, want [permissions]", updated)
	}

	if got := f.section("organizations")["acme"].(map[string]any)["tier"]; got != "gold" {
		t.Fatalf("organizations mutated by a permissions update: %v", got)
	}
	if f.section("users")["alice"] == nil {
		t.Fatalf("users mutated by a permissions update")
	}
	if f.section("bogus") != nil {
		t.Fatalf("unknown section was written")
	}
}

func TestOPAUpdateSectionsAbortsOnFirstFailure(t *testing.T) {
	f := newFakeOPA()
	f.failSection = "group_permissions"
	o := NewOPA(f.server(t).URL)

	updated, err := o.UpdateSections(context.Background(), map[string]json.RawMessage{
		"permissions":       json.RawMessage(`{}`),
		"group_permissions": json.RawMessage(`{}`),
		"users":             json.RawMessage(`{}`),
	})
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if updated != nil {
		t.Fatalf("a failed call must not report a partial section list, got %v", updated)
	}
	if f.section("users") != nil {
		t.Fatalf("section after the failure was still written")
	}
}

func TestOPAUpdatePolicyRejectsEmptySource(t *testing.T) {
	o := NewOPA("http://localhost:0")
	if err := o.UpdatePolicy(context.Background(), "authz", ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestOPAUpdatePolicyPushesSource(t *testing.T) {
	f := newFakeOPA()
	o := NewOPA(f.server(t).URL)

	src := "package authz\n\ndefault allow = false\n"
	if err := o.UpdatePolicy(context.Background(), "authz", src); err != nil {
		t.Fatalf("UpdatePolicy error = %v", err)
	}
	if f.policies["authz"] != src {
		t.Fatalf("stored policy = %q", f.policies["authz"])
	}
}

func TestOPAUpdatePolicyDefaultsName(t *testing.T) {
	f := newFakeOPA()
	o := NewOPA(f.server(t).URL)

	if err := o.UpdatePolicy(context.Background(), "", "package authz\n"); err != nil {
		t.Fatalf("UpdatePolicy error = %v", err)
	}
	if _, ok := f.policies["authz"]; !ok {
		t.Fatalf("unnamed policy not stored under the default slot: %v", f.policies)
	}
}
