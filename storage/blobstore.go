// Package storage provides the BlobStore port that backs both the artifact
// store and the workflow checkpoint store. It is the concrete shape of the
// "engine consumes a BlobStore port" persistence boundary: everything above
// this package deals in typed records; everything at or below it deals in
// opaque bytes keyed by string.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// ErrAlreadyExists is returned by PutIfAbsent when the key is already set.
var ErrAlreadyExists = errors.New("storage: key already exists")

// BlobStore persists opaque byte values keyed by string.
//
// Implementations must be safe for concurrent use. Writes to the same key
// must be serialized by the implementation.
type BlobStore interface {
	// Put writes value under key, overwriting any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent writes value under key only if key is not already set.
	// Returns ErrAlreadyExists if key is already present.
	PutIfAbsent(ctx context.Context, key string, value []byte) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. It is not an error to delete a missing key.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix, in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
}
