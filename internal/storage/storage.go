// Package storage persists serialized cart state under string keys.
//
// The cart writes its whole line array to one key after every mutation and
// deletes the key when the cart empties, the same contract a browser's
// localStorage gives. Backends: in-memory, one-file-per-key directory, Redis.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("storage: key not found")
	// ErrConflict is returned by Update when concurrent writers kept
	// invalidating the read.
	ErrConflict = errors.New("storage: concurrent update")
)

// Store is a minimal key/value store.
// Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// UpdateFunc maps the current value of a key to its replacement. found is
// false when the key is absent. Returning a nil value deletes the key;
// returning an error aborts without writing. It may be called more than
// once when a backend retries.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Updater is implemented by backends that can read-modify-write a key
// without losing a concurrent writer's update.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Update applies fn to key, atomically when st is an Updater and as a
// plain Get then Set otherwise.
func Update(ctx context.Context, st Store, key string, fn UpdateFunc) error {
	if u, ok := st.(Updater); ok {
		return u.Update(ctx, key, fn)
	}

	current, err := st.Get(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(current, found)
	if err != nil {
		return err
	}
	if next == nil {
		return st.Delete(ctx, key)
	}
	return st.Set(ctx, key, next)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Dir      string // file backend
	RedisURL string // redis backend, e.g. redis://localhost:6379/0
}

// Open creates the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(opts.Dir)
	case BackendRedis:
		return NewRedis(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", opts.Backend)
	}
}
