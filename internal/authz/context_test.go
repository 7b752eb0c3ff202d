package authz

import (
	"testing"
	"time"

	"github.com/kestrel-sec/authgate/internal/identity"
)

func testIdentity() *identity.Identity {
	return &identity.Identity{Subject: "alice", ClientID: "cli-1", Scope: "openid"}
}

func TestBuildInputDerivesActionFromVerb(t *testing.T) {
	in, err := BuildInput(BackendAttribute, testIdentity(), "doc1", "GET", nil)
	if err != nil {
		t.Fatalf("BuildInput error = %v", err)
	}
	if in.Subject != "alice" || in.Object != "doc1" {
		t.Fatalf("subject/object = %q/%q", in.Subject, in.Object)
	}
	if in.Action != "read" || in.Verb != "GET" {
		t.Fatalf("action/verb = %q/%q", in.Action, in.Verb)
	}
	if _, err := time.Parse(time.RFC3339, in.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not RFC3339: %v", in.Timestamp, err)
	}
}

func TestBuildInputPropagatesMappingError(t *testing.T) {
	if _, err := BuildInput(BackendGraph, testIdentity(), "doc1", "PURGE", nil); err == nil {
		t.Fatalf("expected mapping error for unmapped graph verb")
	}
}

func TestBuildInputMergesHints(t *testing.T) {
	hints := map[string]any{
		"sensitivity_level": "high",
		"department":        "engineering",
	}
	in, err := BuildInput(BackendAttribute, testIdentity(), "doc1", "PUT", hints)
	if err != nil {
		t.Fatalf("BuildInput error = %v", err)
	}
	if in.Attributes["sensitivity_level"] != "high" {
		t.Fatalf("hint not merged: %v", in.Attributes)
	}
}

func TestBuildInputHintsCannotShadowReservedFields(t *testing.T) {
	hints := map[string]any{
		"action":  "admin",
		"subject": "mallory",
		"size":    42,
	}
	in, err := BuildInput(BackendAttribute, testIdentity(), "doc1", "GET", hints)
	if err != nil {
		t.Fatalf("BuildInput error = %v", err)
	}
	if in.Action != "read" || in.Subject != "alice" {
		t.Fatalf("reserved fields overridden: action=%q subject=%q", in.Action, in.Subject)
	}
	if _, ok := in.Attributes["action"]; ok {
		t.Fatalf("reserved key leaked into attributes")
	}
	if in.Attributes["size"] != 42 {
		t.Fatalf("non-reserved hint dropped")
	}
}

func TestBuildGrantInputUsesElevatedAction(t *testing.T) {
	in := BuildGrantInput(BackendAttribute, testIdentity(), "doc1", "POST", nil)
	if in.Action != "grant_permission" {
		t.Fatalf("grant action = %q, want grant_permission", in.Action)
	}
	in = BuildGrantInput(BackendGraph, testIdentity(), "doc1", "POST", nil)
	if in.Action != "owner" {
		t.Fatalf("grant action = %q, want owner", in.Action)
	}
}
