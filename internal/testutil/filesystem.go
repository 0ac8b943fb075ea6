package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dedupe-go/internal/dedupe"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
	// Vanished files are still listed by FindFiles but fail to open.
	Vanished bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
type MockFilesystemManager struct {
	files map[string]*MockFile
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     time.Now(),
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

// Vanish makes path fail to open as if it was deleted after being listed.
func (m *MockFilesystemManager) Vanish(path string) {
	if f, ok := m.files[path]; ok {
		f.Vanished = true
	}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*dedupe.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}

	return dedupe.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *dedupe.Path) (io.ReadCloser, error) {
	file, ok := m.files[path.String()]
	if !ok || file.Vanished {
		return nil, &fs.PathError{Op: "open", Path: path.String(), Err: fs.ErrNotExist}
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

// FindFiles returns the files below dir in lexical order.
func (m *MockFilesystemManager) FindFiles(dir *dedupe.Path) ([]*dedupe.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	prefix := strings.TrimSuffix(dir.String(), "/") + "/"
	var names []string
	for p, f := range m.files {
		if !f.IsDirectory && strings.HasPrefix(p, prefix) {
			names = append(names, p)
		}
	}
	sort.Strings(names)

	paths := make([]*dedupe.Path, 0, len(names))
	for _, p := range names {
		paths = append(paths, dedupe.NewPath(p, false, newMockFileInfo(p, m.files[p])))
	}
	return paths, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    f.Permissions,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ dedupe.FilesystemManager = (*MockFilesystemManager)(nil)
