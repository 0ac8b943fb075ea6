package testutil

import (
	"testing"

	"dedupe-go/internal/blobstore"
	"dedupe-go/internal/database"
	"dedupe-go/internal/dedupe"
)

// NewTestBlobStore creates a new in-memory blob store for testing.
func NewTestBlobStore() *blobstore.MemoryStore {
	return blobstore.NewMemoryStore()
}

// TestStorage bundles a UniqueStorage with the stores behind it so tests
// can inspect blobs and records directly.
type TestStorage struct {
	*dedupe.UniqueStorage
	Blobs *blobstore.MemoryStore
	DB    *database.SQLDatabase
	Clock *StubClock
}

// NewTestStorage creates a UniqueStorage over an in-memory blob store and a
// migrated in-memory database, using the default naming options.
func NewTestStorage(t *testing.T) *TestStorage {
	t.Helper()
	return NewTestStorageWithOptions(t, dedupe.DefaultNameOptions())
}

// NewTestStorageWithOptions is NewTestStorage with custom naming options.
func NewTestStorageWithOptions(t *testing.T, opts dedupe.NameOptions) *TestStorage {
	t.Helper()

	blobs := NewTestBlobStore()
	db := NewTestDatabase(t)
	clock := FixedClock()

	return &TestStorage{
		UniqueStorage: dedupe.NewUniqueStorage(blobs, db, opts, clock, dedupe.NewNopLogger()),
		Blobs:         blobs,
		DB:            db,
		Clock:         clock,
	}
}
