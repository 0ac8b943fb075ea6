package dedupe

import (
	"context"
	"io"
)

// BlobStore provides an interface for the byte storage behind a namespace.
// Names are slash-separated relative paths. All operations stream through
// io.Reader so large files never have to be held in memory.
type BlobStore interface {
	// Exists reports whether a blob is stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// Open returns a reader for the blob stored under name.
	// Returns an error wrapping ErrMissingBlob if nothing is stored there.
	// The caller must close the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Write stores everything read from r under name, replacing any existing
	// blob, and returns the name it was stored under.
	Write(ctx context.Context, name string, r io.Reader) (string, error)

	// Delete removes the blob stored under name. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// LocalPather is implemented by blob stores that keep blobs on the local
// filesystem. It is used to prune directories left empty after a delete.
type LocalPather interface {
	// Path returns the filesystem path for name.
	Path(name string) (string, error)
}
