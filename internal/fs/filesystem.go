package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dedupe-go/internal/dedupe"
)

// OSFilesystemManager is the real filesystem implementation of dedupe.FilesystemManager.
type OSFilesystemManager struct {
	ignore []string
}

// NewOSFilesystemManager creates a filesystem manager that skips files
// matching the given ignore patterns, in addition to the built-in ones and
// those read from each collected directory's ignore file.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*dedupe.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if !mode.IsRegular() && !mode.IsDir() {
		return nil, fmt.Errorf("not a regular file or directory: %s", absPath)
	}

	return dedupe.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *dedupe.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// FindFiles discovers regular files under dir, recursively. Ignored
// directories are not descended into.
func (m *OSFilesystemManager) FindFiles(dir *dedupe.Path) ([]*dedupe.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	local, err := ParseIgnoreFile(filepath.Join(dir.String(), IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, m.ignore...), local...)).WithDefaults()

	var paths []*dedupe.Path
	err = filepath.WalkDir(dir.String(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir.String(), p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && matcher.MatchDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		paths = append(paths, dedupe.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return paths, nil
}

// Compile-time check that OSFilesystemManager implements dedupe.FilesystemManager.
var _ dedupe.FilesystemManager = (*OSFilesystemManager)(nil)
