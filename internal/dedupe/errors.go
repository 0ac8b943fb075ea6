package dedupe

import "errors"

var (
	// ErrHashing is returned when content cannot be read while computing its hash.
	ErrHashing = errors.New("hashing content")

	// ErrWrite is returned when the blob store rejects a write.
	ErrWrite = errors.New("writing blob")

	// ErrMissingBlob is returned when a name refers to a blob that does not exist.
	ErrMissingBlob = errors.New("blob does not exist")

	// ErrNotFound is returned by lookups that have no matching record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for names that cannot be stored (absolute, empty, "..").
	ErrInvalidName = errors.New("invalid name")
)
