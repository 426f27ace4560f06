// Package storage defines the Archive interface for persisting generated
// images. It abstracts the backend so the pipeline can write to local disk,
// an S3-compatible object store, or nothing at all without changing
// application code.
package storage

import "context"

// Archive is a minimal byte-oriented blob store.
//
// Paths are forward-slash separated and relative to the archive root.
// Implementations must be safe for concurrent use.
type Archive interface {
	// Save stores data under the named path, overwriting any previous
	// content.
	Save(ctx context.Context, path string, data []byte) error

	// Load retrieves the content stored under the named path.
	// If the path does not exist, an error wrapping os.ErrNotExist is
	// returned.
	Load(ctx context.Context, path string) ([]byte, error)

	// Delete removes the named path. Deleting an absent path is not an
	// error (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named path exists.
	Exists(ctx context.Context, path string) (bool, error)
}
