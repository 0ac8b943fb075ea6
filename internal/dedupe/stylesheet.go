package dedupe

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// cssReferencePatterns find file references in a stylesheet. The first
// submatch is the reference itself.
var cssReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)url\(\s*['"]?\s*([^'"()\s]+)\s*['"]?\s*\)`),
	regexp.MustCompile(`(?i)@import\s*['"]\s*([^'"\s]+)\s*['"]`),
}

// externalReferencePattern matches references that never name a collected
// file: other schemes, protocol-relative URLs, fragments and inline data.
var externalReferencePattern = regexp.MustCompile(`(?i)^([a-z][a-z0-9+.-]*://|//|#|data:)`)

// IsStylesheet reports whether name is collected with its references
// rewritten.
func IsStylesheet(name string) bool {
	return strings.EqualFold(path.Ext(name), ".css")
}

// rewriteReferences replaces every file reference in css with the result
// of rewrite.
func rewriteReferences(css string, rewrite func(ref string) string) string {
	for _, re := range cssReferencePatterns {
		matches := re.FindAllStringSubmatchIndex(css, -1)
		if len(matches) == 0 {
			continue
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			b.WriteString(css[last:m[2]])
			b.WriteString(rewrite(css[m[2]:m[3]]))
			last = m[3]
		}
		b.WriteString(css[last:])
		css = b.String()
	}
	return css
}

// referenceTarget resolves ref, found in the stylesheet collected as name,
// to the collected name it points at. ok is false for references that do not
// name a collected file: external URLs and root-relative paths.
// suffix holds any query or fragment.
func referenceTarget(name, ref string) (target, suffix string, ok bool) {
	if externalReferencePattern.MatchString(ref) || strings.HasPrefix(ref, "/") {
		return "", "", false
	}
	p := ref
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		p, suffix = ref[:i], ref[i:]
	}
	if p == "" {
		return "", "", false
	}
	return path.Join(path.Dir(name), p), suffix, true
}

// relativeReference returns the URL of target as seen from a stylesheet
// stored in dir.
func relativeReference(dir, target string) string {
	if dir == "" {
		dir = "."
	}
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}
