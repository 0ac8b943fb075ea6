package dedupe

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// DefaultPathPrefix namespaces all content-addressed names.
const DefaultPathPrefix = "dd"

// DefaultHashLength is the abbreviated hash length used when the original basename is kept.
const DefaultHashLength = 7

// DefaultExtensions maps extensions to their canonical spelling.
var DefaultExtensions = map[string]string{
	".jpeg": ".jpg",
	".yaml": ".yml",
}

// NameOptions configures how unique names are derived.
//
// With KeepBasename unset a unique name is prefix/dir/<hash><ext>. With it set
// the name stays readable as prefix/dir/<basename>.<hash[:HashLength]><ext>,
// at the cost of a higher collision risk for short hash lengths.
type NameOptions struct {
	Prefix       string
	Extensions   map[string]string
	HashLength   int
	KeepBasename bool
}

// DefaultNameOptions returns the default naming configuration.
func DefaultNameOptions() NameOptions {
	return NameOptions{
		Prefix:     DefaultPathPrefix,
		Extensions: DefaultExtensions,
		HashLength: DefaultHashLength,
	}
}

// WithExtensions returns a copy of o with extra merged over its alias table.
// Keys are matched case-insensitively.
func (o NameOptions) WithExtensions(extra map[string]string) NameOptions {
	merged := make(map[string]string, len(o.Extensions)+len(extra))
	for from, to := range o.Extensions {
		merged[strings.ToLower(from)] = to
	}
	for from, to := range extra {
		merged[strings.ToLower(from)] = to
	}
	o.Extensions = merged
	return o
}

// Validate reports configuration values that cannot produce valid names.
func (o NameOptions) Validate() error {
	if strings.Contains(o.Prefix, "..") || strings.HasPrefix(o.Prefix, "/") {
		return fmt.Errorf("invalid path prefix: %q", o.Prefix)
	}
	if o.HashLength < 0 || o.HashLength > HashLength {
		return fmt.Errorf("hash length must be between 1 and %d, got %d", HashLength, o.HashLength)
	}
	for from, to := range o.Extensions {
		if !strings.HasPrefix(from, ".") || !strings.HasPrefix(to, ".") {
			return fmt.Errorf("extension aliases must start with a dot: %q -> %q", from, to)
		}
	}
	return nil
}

func (o NameOptions) hashLength() int {
	if o.HashLength <= 0 || o.HashLength > HashLength {
		return DefaultHashLength
	}
	return o.HashLength
}

// Derive returns the unique name for a file stored under name whose content
// hashes to hash. Deriving from a name that is already unique reproduces the
// same name instead of nesting prefixes or hashing a hash.
func (o NameOptions) Derive(name, hash string) string {
	dir, file := path.Split(o.trimPrefix(name))
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	if stem == "" {
		// Dotfiles such as ".env" have no extension.
		stem, ext = file, ""
	}

	ext = strings.ToLower(ext)
	if alias, ok := o.Extensions[ext]; ok {
		ext = alias
	}

	basename := hash
	if o.KeepBasename {
		n := o.hashLength()
		if n > len(hash) {
			n = len(hash)
		}
		basename = stripHashSuffix(stem, n) + "." + hash[:n]
	}

	return path.Join(o.Prefix, dir, basename+ext)
}

// Dir returns the directory Derive places a unique name for name in.
func (o NameOptions) Dir(name string) string {
	dir, _ := path.Split(o.trimPrefix(name))
	return path.Join(o.Prefix, dir)
}

// trimPrefix cleans name and strips the prefix so it is never prepended twice.
func (o NameOptions) trimPrefix(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if o.Prefix != "" {
		name = strings.TrimPrefix(name, strings.Trim(o.Prefix, "/")+"/")
	}
	return name
}

var hashSuffixPattern = regexp.MustCompile(`^(.+)\.([0-9a-f]+)$`)

// stripHashSuffix removes a trailing hex segment left by a previous
// derivation. Segments between the shorter of n and DefaultHashLength and a
// full hash count, so names derived under another hash length are
// recognised too.
func stripHashSuffix(stem string, n int) string {
	m := hashSuffixPattern.FindStringSubmatch(stem)
	if m == nil {
		return stem
	}
	if l := len(m[2]); l >= min(n, DefaultHashLength) && l <= HashLength {
		return m[1]
	}
	return stem
}

// ValidateName rejects names that would escape a storage namespace.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: absolute name %q", ErrInvalidName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q escapes the namespace", ErrInvalidName, name)
		}
	}
	return nil
}
