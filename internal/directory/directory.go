// Package directory maps logical service names to network endpoints.
//
// The supervisor registers each member under a unique name at bootstrap and
// removes it again during teardown. Two backends are provided: Redis for real
// deployments and an in-memory map for tests and single-host runs.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Lookup when a name is not registered.
var ErrNotFound = errors.New("name not registered")

// Directory is the naming capability consumed by the registry.
type Directory interface {
	Register(ctx context.Context, name, endpoint string) error
	Remove(ctx context.Context, name string) error
	Lookup(ctx context.Context, name string) (string, error)
	// List returns every registered name, sorted.
	List(ctx context.Context) ([]string, error)
}
