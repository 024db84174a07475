// Package slot provides the persistence backends for beatflow. A slot is a single
// key holding one opaque blob; the pattern store keeps its whole collection in one
// slot and relies on the backend for an atomic read-modify-write cycle.
//
// Backends implement Update as a single compare-and-swap attempt. If the slot
// changed between the read and the write, Update returns ErrConflict and the
// caller decides whether to retry.
package slot

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no blob.
	ErrNotFound = errors.New("slot is empty")

	// ErrConflict is returned by Update when another writer modified the slot
	// between the read and the write.
	ErrConflict = errors.New("slot was modified concurrently")

	// ErrCapacity indicates a blob larger than the configured limit.
	ErrCapacity = errors.New("slot capacity exceeded")

	// ErrClosed is returned by a backend used after Close.
	ErrClosed = errors.New("slot backend is closed")
)

// UpdateFunc receives the current blob (nil when the slot is empty) and returns
// its replacement. Returning an error aborts the update without writing, and
// the error is handed back to the caller of Update unchanged.
type UpdateFunc func(current []byte) ([]byte, error)

// Backend stores blobs under string keys.
type Backend interface {
	// Get returns the blob stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites key with data in one call.
	Put(ctx context.Context, key string, data []byte) error

	// Update runs one read-modify-write attempt against key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Close releases the backend's connections.
	Close() error
}
