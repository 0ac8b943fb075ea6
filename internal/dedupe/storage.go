package dedupe

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Storage is a namespace of named files backed by a BlobStore.
type Storage interface {
	// Save stores content under name and returns the name it was actually stored under.
	Save(ctx context.Context, name string, content io.Reader) (string, error)

	// Open returns a reader for the file stored under name. The caller must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether a file is stored under name.
	Exists(ctx context.Context, name string) (bool, error)
}

// ContentAddressable is the capability of storages that name files by their
// content. Files stored by such a storage never change once written, and
// each stored name can be traced back to the names it was saved under.
type ContentAddressable interface {
	Storage

	// OriginalName returns the latest original name recorded for a unique
	// name, or name itself if it has no record.
	OriginalName(ctx context.Context, name string) (string, error)

	// LatestUniqueName returns the unique name most recently recorded for an
	// original name. Returns an error wrapping ErrNotFound if there is none.
	LatestUniqueName(ctx context.Context, originalName string) (string, error)
}

// UniqueStorage saves files under content-derived names and records the
// original name of every save. It composes a BlobStore for the bytes with a
// RecordStore for the name history.
type UniqueStorage struct {
	blobs   BlobStore
	records RecordStore
	opts    NameOptions
	clock   Clock
	logger  Logger
}

var _ ContentAddressable = (*UniqueStorage)(nil)

// NewUniqueStorage creates a UniqueStorage with the provided dependencies.
func NewUniqueStorage(blobs BlobStore, records RecordStore, opts NameOptions, clock Clock, logger Logger) *UniqueStorage {
	return &UniqueStorage{
		blobs:   blobs,
		records: records,
		opts:    opts,
		clock:   clock,
		logger:  logger,
	}
}

// Options returns the naming configuration.
func (s *UniqueStorage) Options() NameOptions {
	return s.opts
}

// Blobs returns the underlying blob store.
func (s *UniqueStorage) Blobs() BlobStore {
	return s.blobs
}

// Save stores content under its unique name and returns that name.
//
// A record linking the unique name to name is appended whenever the two
// differ, even when the blob already exists: the mapping is per save, so
// several original names can point at one blob. The blob itself is written
// only if nothing is stored under the unique name yet, since an existing
// unique name proves identical content. The record is appended before the
// write; a crash in between leaves a record whose blob a retry will write.
func (s *UniqueStorage) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	body, cleanup, err := rewindable(content)
	if err != nil {
		return "", err
	}
	defer cleanup()

	hash, err := ContentHash(body)
	if err != nil {
		return "", err
	}

	uniqueName := s.opts.Derive(name, hash)

	if uniqueName != name {
		if _, err := s.records.AppendRecord(ctx, uniqueName, name, s.clock.Now()); err != nil {
			return "", fmt.Errorf("recording original name: %w", err)
		}
	}

	exists, err := s.blobs.Exists(ctx, uniqueName)
	if err != nil {
		return "", fmt.Errorf("checking for existing blob: %w", err)
	}
	if exists {
		s.logger.Debug("content deduplicated", "name", name, "unique_name", uniqueName)
		return uniqueName, nil
	}

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: rewinding content: %v", ErrHashing, err)
	}
	if _, err := s.blobs.Write(ctx, uniqueName, body); err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrWrite, uniqueName, err)
	}

	s.logger.Info("file saved", "name", name, "unique_name", uniqueName)
	return uniqueName, nil
}

// Open returns a reader for the blob stored under name.
func (s *UniqueStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, name)
}

// Exists reports whether a blob is stored under name.
func (s *UniqueStorage) Exists(ctx context.Context, name string) (bool, error) {
	return s.blobs.Exists(ctx, name)
}

// OriginalName returns the latest original name recorded for name. A name
// without a record is assumed to be an original name already and is
// returned unchanged.
func (s *UniqueStorage) OriginalName(ctx context.Context, name string) (string, error) {
	rec, err := s.records.LatestByUniqueName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up original name: %w", err)
	}
	if rec == nil {
		return name, nil
	}
	return rec.OriginalName, nil
}

// LatestUniqueName returns the unique name most recently recorded for
// originalName.
func (s *UniqueStorage) LatestUniqueName(ctx context.Context, originalName string) (string, error) {
	rec, err := s.records.LatestByOriginalName(ctx, originalName)
	if err != nil {
		return "", fmt.Errorf("looking up unique name: %w", err)
	}
	if rec == nil {
		return "", fmt.Errorf("%w: no unique name recorded for %s", ErrNotFound, originalName)
	}
	return rec.UniqueName, nil
}

// PlainStorage stores files under the names they are saved with. Saving
// over an existing name replaces its content, so files stored here are
// never safe to cache forever.
type PlainStorage struct {
	blobs BlobStore
}

var _ Storage = (*PlainStorage)(nil)

// NewPlainStorage creates a PlainStorage over blobs.
func NewPlainStorage(blobs BlobStore) *PlainStorage {
	return &PlainStorage{blobs: blobs}
}

// Save writes content under name.
func (s *PlainStorage) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	stored, err := s.blobs.Write(ctx, name, content)
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrWrite, name, err)
	}
	return stored, nil
}

// Open returns a reader for the blob stored under name.
func (s *PlainStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, name)
}

// Exists reports whether a blob is stored under name.
func (s *PlainStorage) Exists(ctx context.Context, name string) (bool, error) {
	return s.blobs.Exists(ctx, name)
}

// IsNotFound reports whether err means a lookup found nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMissingBlob)
}
