package interfaces

import "context"

// StorageBackendLocation is a URI describing a blob storage backend, for
// example "file:///var/spool/unsigned" or
// "s3://bucket/prefix?region=us-east-1".
type StorageBackendLocation string

// BlobStorage is a named-blob store used by the signing worker to pick up
// unsigned content and drop off signed results.
//
// All methods accept a context and are safe for concurrent use.
type BlobStorage interface {
	// List returns the names of the blobs currently present, relative to
	// the backend's configured location.
	List(ctx context.Context) ([]string, error)

	// Fetch retrieves a blob by name. Returns ErrBlobNotFound if it does
	// not exist.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// Store writes a blob under the given name, replacing any previous
	// content.
	Store(ctx context.Context, name string, data []byte) error

	// Delete removes a blob by name. Deleting a missing blob is not an
	// error.
	Delete(ctx context.Context, name string) error

	// LocationURI returns the canonical URI of this backend for logging
	// and diagnostics.
	LocationURI() string
}
