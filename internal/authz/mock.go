package authz

import (
	"context"
	"sync"
)

// Mock is an in-process authorizer/granter for tests and local development.
// Unless AlwaysAllow is set, it answers checks from its own tuple set using
// the same already-exists grant semantics as the graph backend.
type Mock struct {
	AlwaysAllow bool

	mu     sync.Mutex
	tuples map[Tuple]struct{}
}

func (m *Mock) Backend() Backend { return BackendGraph }

// Seed records a tuple directly, bypassing the grant path.
func (m *Mock) Seed(t Tuple) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tuples == nil {
		m.tuples = map[Tuple]struct{}{}
	}
	m.tuples[t] = struct{}{}
}

func (m *Mock) Check(ctx context.Context, in Input) (Decision, error) {
	if m.AlwaysAllow {
		return Decision{Allowed: true}, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := Tuple{Subject: SubjectRef(in.Subject), Relation: in.Action, Object: ObjectRef(in.Object)}
	if _, ok := m.tuples[t]; ok {
		return Decision{Allowed: true}, nil
	}
	return Decision{Reason: "mock_deny"}, nil
}

func (m *Mock) Grant(ctx context.Context, targetUser, resourceID, relation string) (GrantResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tuples == nil {
		m.tuples = map[Tuple]struct{}{}
	}
	t := Tuple{Subject: SubjectRef(targetUser), Relation: relation, Object: ObjectRef(resourceID)}
	if _, ok := m.tuples[t]; ok {
		return GrantResult{Status: StatusAlreadyExists}, nil
	}
	m.tuples[t] = struct{}{}
	return GrantResult{Status: StatusNewlyGranted}, nil
}
