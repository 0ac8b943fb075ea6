package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"dedupe-go/internal/dedupe"
)

// MemoryStore is an in-memory implementation of dedupe.BlobStore.
// It is safe for concurrent use and mostly useful for testing.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	writes int
}

var _ dedupe.BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Exists reports whether a blob is stored under name.
func (m *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	if err := dedupe.ValidateName(name); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[name]
	return ok, nil
}

// Open returns a reader for the stored blob.
func (m *MemoryStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := dedupe.ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dedupe.ErrMissingBlob, name)
	}
	return blobReader{bytes.NewReader(data)}, nil
}

// blobReader keeps Seek visible so the HTTP layer can serve ranges.
type blobReader struct {
	*bytes.Reader
}

func (blobReader) Close() error { return nil }

// Write stores everything read from r under name.
func (m *MemoryStore) Write(_ context.Context, name string, r io.Reader) (string, error) {
	if err := dedupe.ValidateName(name); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[name] = data
	m.writes++
	return name, nil
}

// Delete removes the blob stored under name.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, name)
	return nil
}

// Names returns the stored names in lexical order.
func (m *MemoryStore) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Writes returns how many times Write has stored a blob.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.writes
}
