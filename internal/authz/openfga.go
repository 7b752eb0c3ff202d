package authz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	fga "github.com/openfga/go-sdk/client"

	"github.com/kestrel-sec/authgate/internal/apperr"
)

// OpenFGA is the graph-backend client. The underlying SDK client is bound to
// a store id, so it is cached as an immutable handle and rebuilt whenever the
// store-id source reports a different value. Readers load a complete snapshot
// atomically; construction and rebuild are serialized by the mutex.
type OpenFGA struct {
	apiURL string
	source StoreIDSource

	mu     sync.Mutex
	handle atomic.Pointer[fgaHandle]
}

type fgaHandle struct {
	storeID string
	client  *fga.OpenFgaClient
}

// NewOpenFGA builds a graph client for the FGA server at apiURL. The handle
// itself is constructed lazily on the first decision or mutation call.
func NewOpenFGA(apiURL string, source StoreIDSource) *OpenFGA {
	return &OpenFGA{apiURL: apiURL, source: source}
}

func (o *OpenFGA) Backend() Backend { return BackendGraph }

// StoreID reports the store id currently in use, for introspection.
func (o *OpenFGA) StoreID() string {
	if h := o.handle.Load(); h != nil {
		return h.storeID
	}
	id, _ := o.source.StoreID()
	return id
}

func (o *OpenFGA) client(ctx context.Context) (*fga.OpenFgaClient, error) {
	id, err := o.source.StoreID()
	if err != nil || id == "" {
		return nil, fmt.Errorf("%w: store id unavailable: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if h := o.handle.Load(); h != nil && h.storeID == id {
		return h.client, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if h := o.handle.Load(); h != nil && h.storeID == id {
		return h.client, nil
	}
	c, err := fga.NewSdkClient(&fga.ClientConfiguration{
		ApiUrl:  o.apiURL,
		StoreId: id,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openfga client init: %v", apperr.ErrUpstreamUnavailable, err)
	}
	o.handle.Store(&fgaHandle{storeID: id, client: c})
	return c, nil
}

// Check asks FGA whether user:{subject} holds {action} on resource:{object}.
// Group and hierarchy resolution happens inside the backend. Client
// construction failure or transport failure is a denial plus a wrapped error.
func (o *OpenFGA) Check(ctx context.Context, in Input) (Decision, error) {
	c, err := o.client(ctx)
	if err != nil {
		return Decision{Reason: "client_unavailable"}, err
	}

	resp, err := c.Check(ctx).Body(fga.ClientCheckRequest{
		User:     SubjectRef(in.Subject),
		Relation: in.Action,
		Object:   ObjectRef(in.Object),
	}).Execute()
	if err != nil {
		return Decision{Reason: "check_failed"}, fmt.Errorf("%w: fga check: %v", apperr.ErrUpstreamUnavailable, err)
	}

	if resp.Allowed != nil && *resp.Allowed {
		return Decision{Allowed: true}, nil
	}
	return Decision{Reason: "policy_denied"}, nil
}

// Grant writes a single relationship tuple. Writing a tuple that already
// exists is a success with StatusAlreadyExists, by contract.
func (o *OpenFGA) Grant(ctx context.Context, targetUser, resourceID, relation string) (GrantResult, error) {
	c, err := o.client(ctx)
	if err != nil {
		return GrantResult{}, err
	}

	_, err = c.Write(ctx).Body(fga.ClientWriteRequest{
		Writes: []fga.ClientTupleKey{{
			User:     SubjectRef(targetUser),
			Relation: relation,
			Object:   ObjectRef(resourceID),
		}},
	}).Execute()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return GrantResult{Status: StatusAlreadyExists}, nil
		}
		return GrantResult{}, fmt.Errorf("%w: fga write: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return GrantResult{Status: StatusNewlyGranted}, nil
}

// ReadTuples lists the store's relationship tuples, for introspection.
func (o *OpenFGA) ReadTuples(ctx context.Context) ([]Tuple, error) {
	c, err := o.client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.Read(ctx).Body(fga.ClientReadRequest{}).Execute()
	if err != nil {
		return nil, fmt.Errorf("%w: fga read: %v", apperr.ErrUpstreamUnavailable, err)
	}

	out := make([]Tuple, 0, len(resp.Tuples))
	for _, t := range resp.Tuples {
		out = append(out, Tuple{
			Subject:  t.Key.User,
			Relation: t.Key.Relation,
			Object:   t.Key.Object,
		})
	}
	return out, nil
}
