package walk

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/text/unicode/norm"
)

// Matcher decides whether a discovered file is excluded from monitoring.
// It is safe for concurrent use once built.
type Matcher struct {
	globs  []string
	ignore *ignore.GitIgnore
}

// NewMatcher compiles glob patterns and, when ignoreFile is not empty, a
// gitignore-syntax file whose rules apply to root-relative paths.
func NewMatcher(globs []string, ignoreFile string) (*Matcher, error) {
	m := &Matcher{}
	for _, g := range globs {
		g = normalizePattern(g)
		if g == "" {
			continue
		}
		for _, seg := range strings.Split(strings.Trim(g, "/"), "/") {
			if seg == "**" {
				continue
			}
			if _, err := path.Match(seg, ""); err != nil {
				return nil, fmt.Errorf("invalid exclude glob %q: %w", g, err)
			}
		}
		m.globs = append(m.globs, g)
	}

	if ignoreFile != "" {
		gi, err := ignore.CompileIgnoreFile(ignoreFile)
		if err != nil {
			return nil, fmt.Errorf("read ignore file %s: %w", ignoreFile, err)
		}
		m.ignore = gi
	}
	return m, nil
}

// Excluded reports whether p, found under root, matches any glob (tested
// against both the root-relative and the full path) or the ignore file.
func (m *Matcher) Excluded(root, p string) bool {
	if m == nil {
		return false
	}
	full := normalizePath(p)
	rel, err := filepath.Rel(root, p)
	hasRel := err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	if hasRel {
		rel = normalizePath(rel)
	}

	for _, g := range m.globs {
		if matchPath(g, full) || (hasRel && matchPath(g, rel)) {
			return true
		}
	}
	if m.ignore != nil && hasRel && m.ignore.MatchesPath(rel) {
		return true
	}
	return false
}

// Empty reports whether the matcher excludes nothing.
func (m *Matcher) Empty() bool {
	return m == nil || (len(m.globs) == 0 && m.ignore == nil)
}

func normalizePattern(p string) string {
	return norm.NFC.String(filepath.ToSlash(strings.TrimSpace(p)))
}

func normalizePath(p string) string {
	return norm.NFC.String(filepath.ToSlash(p))
}

// matchPath matches a slash-separated pattern against a slash-separated path.
// An absolute pattern must match the whole path; a relative pattern matches
// any trailing run of path segments. A "**" segment matches zero or more
// segments; every other segment is matched with path.Match and never crosses
// a separator.
func matchPath(pattern, p string) bool {
	anchored := strings.HasPrefix(pattern, "/")
	if anchored && !strings.HasPrefix(p, "/") {
		return false
	}
	pp := splitSegments(pattern)
	sp := splitSegments(p)
	if len(pp) == 0 {
		return false
	}
	if anchored {
		return matchSegments(pp, sp)
	}
	for start := len(sp); start >= 0; start-- {
		if matchSegments(pp, sp[start:]) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
