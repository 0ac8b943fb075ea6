package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"dedupe-go/internal/dedupe"
)

// FileSystemStore keeps blobs as plain files under a root directory. A blob
// named "dd/photos/abc.jpg" lives at <root>/dd/photos/abc.jpg, so the tree
// can be served directly by any static file server.
type FileSystemStore struct {
	root string
}

var (
	_ dedupe.BlobStore   = (*FileSystemStore)(nil)
	_ dedupe.LocalPather = (*FileSystemStore)(nil)
)

// NewFileSystemStore creates a filesystem blob store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

// Root returns the directory blobs are stored under.
func (s *FileSystemStore) Root() string {
	return s.root
}

// Path returns the filesystem path for name.
func (s *FileSystemStore) Path(name string) (string, error) {
	if err := dedupe.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(name)), nil
}

// Exists reports whether a regular file is stored under name.
func (s *FileSystemStore) Exists(_ context.Context, name string) (bool, error) {
	p, err := s.Path(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking blob %s: %w", name, err)
	}
	return info.Mode().IsRegular(), nil
}

// Open returns a reader for the file stored under name.
func (s *FileSystemStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", dedupe.ErrMissingBlob, name)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", dedupe.ErrMissingBlob, name)
	}
	return f, nil
}

// Write stores r under name. The file appears atomically: readers see
// either the previous content or the complete new content.
func (s *FileSystemStore) Write(_ context.Context, name string, r io.Reader) (string, error) {
	p, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	pf, err := renameio.TempFile("", p)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer pf.Cleanup()

	if _, err := io.Copy(pf, r); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := pf.Chmod(0644); err != nil {
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return name, nil
}

// Delete removes the file stored under name.
func (s *FileSystemStore) Delete(_ context.Context, name string) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting blob %s: %w", name, err)
	}
	return nil
}
