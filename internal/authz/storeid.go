package authz

import (
	"os"
	"strings"
)

// StoreIDSource yields the current FGA store identifier. The value is
// authoritative and may change between reads; the graph client re-reads it
// before every call and rebuilds its handle when it differs.
type StoreIDSource interface {
	StoreID() (string, error)
}

// FileStoreIDSource reads the store id from a well-known shared file, the
// way the store provisioner publishes it.
type FileStoreIDSource struct {
	Path string
}

func (s FileStoreIDSource) StoreID() (string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// StaticStoreIDSource pins a store id, for configs that set one explicitly.
type StaticStoreIDSource string

func (s StaticStoreIDSource) StoreID() (string, error) { return string(s), nil }
