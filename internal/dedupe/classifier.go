package dedupe

import (
	"sort"
	"strings"
)

// Mount attaches a Storage to a URL prefix.
type Mount struct {
	Prefix  string
	Storage Storage
}

// Classifier maps URL paths to mounts and decides which files may be cached forever.
type Classifier struct {
	mounts []Mount
}

// NewClassifier creates a Classifier. Prefixes are normalized to have a
// leading and trailing slash; the longest matching prefix wins.
func NewClassifier(mounts ...Mount) *Classifier {
	normalized := make([]Mount, 0, len(mounts))
	for _, m := range mounts {
		if m.Storage == nil {
			continue
		}
		m.Prefix = EnsureLeadingTrailingSlash(m.Prefix)
		normalized = append(normalized, m)
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i].Prefix) > len(normalized[j].Prefix)
	})
	return &Classifier{mounts: normalized}
}

// Match returns the mount serving urlPath and the storage name within it.
func (c *Classifier) Match(urlPath string) (Mount, string, bool) {
	for _, m := range c.mounts {
		if strings.HasPrefix(urlPath, m.Prefix) {
			name := strings.TrimPrefix(urlPath, m.Prefix)
			if name == "" {
				continue
			}
			return m, name, true
		}
	}
	return Mount{}, "", false
}

// IsImmutable reports whether the file at urlPath can be cached forever. Both
// conditions must hold: the path lies under a mounted prefix, and the storage
// mounted there is content-addressable. A plain storage mounted at the same
// prefix never qualifies.
func (c *Classifier) IsImmutable(urlPath string) bool {
	m, _, ok := c.Match(urlPath)
	if !ok {
		return false
	}
	_, ok = m.Storage.(ContentAddressable)
	return ok
}

// EnsureLeadingTrailingSlash returns p with exactly one leading and one trailing slash.
func EnsureLeadingTrailingSlash(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}
