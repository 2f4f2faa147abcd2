// Package storage provides the synchronous key-value medium the
// persistence layer writes to. Implementations must treat write
// failures as reportable, not fatal; the save pipeline degrades
// gracefully on ErrCapacity.
package storage

import "errors"

var (
	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrCapacity is returned when a write would exceed the medium's
	// finite capacity.
	ErrCapacity = errors.New("storage: capacity exceeded")
)

// Store is a synchronous key-value medium with enumerable keys.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	// Keys returns every stored key with the given prefix, unordered.
	Keys(prefix string) ([]string, error)
	Close() error
}
