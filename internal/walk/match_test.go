package walk

import (
	"os"
	"path/filepath"
	"testing"
)

// TestMatchPath tests glob matching against slash-separated paths
func TestMatchPath(t *testing.T) {
	testCases := []struct {
		pattern  string
		path     string
		expected bool
	}{
		// Relative patterns match trailing segments
		{"*.tmp", "/data/app/x.tmp", true},
		{"*.tmp", "/data/app/x.tmpl", false},
		{"*.tmp", "x.tmp", true},
		{"logs/*", "/srv/logs/a.log", true},
		{"logs/*", "/srv/logs/sub/a.log", false},
		{"app/*.log", "/srv/app/a.log", true},

		// Anchored patterns match the whole path
		{"/srv/*.log", "/srv/a.log", true},
		{"/srv/*.log", "/srv/sub/a.log", false},
		{"/srv/*.log", "srv/a.log", false},

		// Double star
		{"**/.git/**", "/repo/.git/config", true},
		{"**/.git/**", "/repo/.git/objects/ab/cdef", true},
		{"**/.git/**", "/repo/src/main.go", false},
		{"/srv/**/*.log", "/srv/a/b/c.log", true},
		{"/srv/**/*.log", "/srv/c.log", true},

		// Single star never crosses a separator
		{"/srv/*", "/srv/a/b", false},

		// Edge cases
		{"", "/srv/a", false},
		{"*", "/srv/a", true},
	}

	for _, tc := range testCases {
		result := matchPath(normalizePattern(tc.pattern), normalizePath(tc.path))
		if result != tc.expected {
			t.Errorf("Pattern %q on path %q: got %v, expected %v", tc.pattern, tc.path, result, tc.expected)
		}
	}
}

// TestMatcherExcluded tests exclusion against full and root-relative paths
func TestMatcherExcluded(t *testing.T) {
	m, err := NewMatcher([]string{"*.tmp", "cache/**", "/etc/shadow"}, "")
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	tests := []struct {
		root     string
		path     string
		expected bool
	}{
		{"/data", "/data/a/b.tmp", true},
		{"/data", "/data/cache/x/y", true},
		{"/data", "/data/a/b.txt", false},
		{"/etc", "/etc/shadow", true},
		{"/etc", "/etc/passwd", false},
		{"/etc/shadow", "/etc/shadow", true},
	}

	for _, tt := range tests {
		if got := m.Excluded(tt.root, tt.path); got != tt.expected {
			t.Errorf("Excluded(%q, %q) = %v, expected %v", tt.root, tt.path, got, tt.expected)
		}
	}
}

// TestMatcherUnicodeNormalization tests that composed and decomposed forms match
func TestMatcherUnicodeNormalization(t *testing.T) {
	// Pattern uses a combining acute accent, the path a precomposed letter.
	m, err := NewMatcher([]string{"cafe\u0301/*"}, "")
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	if !m.Excluded("/data", "/data/caf\u00e9/menu.txt") {
		t.Errorf("Expected composed path to match decomposed pattern")
	}
}

// TestMatcherInvalidGlob tests that malformed patterns are rejected
func TestMatcherInvalidGlob(t *testing.T) {
	if _, err := NewMatcher([]string{"[abc"}, ""); err == nil {
		t.Errorf("Expected error for invalid glob, got nil")
	}
}

// TestMatcherIgnoreFile tests gitignore-style exclusion files
func TestMatcherIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	ignoreFile := filepath.Join(dir, ".fimignore")
	if err := os.WriteFile(ignoreFile, []byte("# build output\nbuild/\n*.o\n"), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	m, err := NewMatcher(nil, ignoreFile)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	if m.Empty() {
		t.Fatalf("Expected matcher with an ignore file to be non-empty")
	}

	root := "/project"
	if !m.Excluded(root, "/project/build/out.bin") {
		t.Errorf("Expected build/out.bin to be excluded")
	}
	if !m.Excluded(root, "/project/src/main.o") {
		t.Errorf("Expected src/main.o to be excluded")
	}
	if m.Excluded(root, "/project/src/main.c") {
		t.Errorf("Expected src/main.c to be kept")
	}

	if _, err := NewMatcher(nil, filepath.Join(dir, "missing")); err == nil {
		t.Errorf("Expected error for missing ignore file, got nil")
	}
}

// TestMatcherNil tests that a nil matcher excludes nothing
func TestMatcherNil(t *testing.T) {
	var m *Matcher
	if m.Excluded("/data", "/data/x") {
		t.Errorf("Nil matcher excluded a path")
	}
	if !m.Empty() {
		t.Errorf("Nil matcher should be empty")
	}
}

// TestMatcherDotDotNames tests that in-root names starting with ".." are matched
func TestMatcherDotDotNames(t *testing.T) {
	dir := t.TempDir()
	ignoreFile := filepath.Join(dir, ".fimignore")
	if err := os.WriteFile(ignoreFile, []byte("/..secret\n"), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}
	m, err := NewMatcher([]string{"..cache/*"}, ignoreFile)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	if !m.Excluded("/srv", "/srv/..secret") {
		t.Errorf("Expected ..secret to be excluded by the ignore file")
	}
	if !m.Excluded("/srv", "/srv/..cache/blob") {
		t.Errorf("Expected ..cache/blob to be excluded by the glob")
	}
	if m.Excluded("/srv", "/elsewhere/..secret") {
		t.Errorf("Expected a path outside the root to be kept")
	}
}
