package integrity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSaveLoadRoundTrip tests that Load returns exactly what Save wrote
func TestSaveLoadRoundTrip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "state", "baseline.json")
	b := Records{
		"/etc/hosts":  {Path: "/etc/hosts", Hash: "aa", Size: 12, Mtime: 1700000000.25},
		"/etc/passwd": {Path: "/etc/passwd", Hash: "bb", Size: 0, Mtime: 0},
		"/srv/é.txt":  {Path: "/srv/é.txt", Hash: "cc", Size: 1 << 40, Mtime: 1.5},
	}

	require.NoError(t, Save(b, dest))
	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, b, loaded)
}

// TestSaveLoadNonUTF8Paths tests that file names which are not valid UTF-8 survive a round trip
func TestSaveLoadNonUTF8Paths(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "baseline.json")
	bad := "/srv/data/bad\xffname"
	lookalike := "base64:L3NydgAA"
	b := Records{
		bad:          {Path: bad, Hash: "aa", Size: 3, Mtime: 1},
		lookalike:    {Path: lookalike, Hash: "bb", Size: 4, Mtime: 2},
		"/srv/plain": {Path: "/srv/plain", Hash: "cc", Size: 5, Mtime: 3},
	}

	require.NoError(t, Save(b, dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, utf8.Valid(data), "baseline file must be valid UTF-8")
	assert.Contains(t, string(data), `"/srv/plain"`)

	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, b, loaded)
	assert.Equal(t, bad, b[bad].Path, "Save must not modify its input")
}

// TestSaveFormat tests that the file is indented, sorted and newline-terminated
func TestSaveFormat(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, Save(Records{
		"/b": {Path: "/b", Hash: "2", Size: 1, Mtime: 2},
		"/a": {Path: "/a", Hash: "1", Size: 1, Mtime: 2},
	}, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasSuffix(text, "}\n"))
	assert.Contains(t, text, "\n  \"/a\": {\n    \"path\": \"/a\",")
	assert.Less(t, strings.Index(text, `"/a"`), strings.Index(text, `"/b"`))
}

// TestSaveReplacesAtomically tests that an existing baseline is replaced and no temp files remain
func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "baseline.json")
	require.NoError(t, Save(Records{"/a": {Path: "/a", Hash: "1"}}, dest))
	require.NoError(t, Save(Records{"/b": {Path: "/b", Hash: "2"}}, dest))

	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, Records{"/b": {Path: "/b", Hash: "2"}}, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestSaveEmpty tests that an empty baseline is a valid empty object
func TestSaveEmpty(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, Save(nil, dest))

	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

// TestLoadErrors tests that every invalid baseline is a FormatError
func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"malformed", `{"/a": `, "malformed JSON"},
		{"array", `[]`, "malformed JSON"},
		{"null", `null`, "expected a JSON object"},
		{"missing hash", `{"/a": {"path": "/a", "size": 1, "mtime": 1}}`, `missing "hash"`},
		{"missing path", `{"/a": {"hash": "x", "size": 1, "mtime": 1}}`, `missing "path"`},
		{"missing size", `{"/a": {"path": "/a", "hash": "x", "mtime": 1}}`, `missing "size"`},
		{"missing mtime", `{"/a": {"path": "/a", "hash": "x", "size": 1}}`, `missing "mtime"`},
		{"key mismatch", `{"/a": {"path": "/b", "hash": "x", "size": 1, "mtime": 1}}`, "does not match"},
		{"trailing garbage", `{"/a": {"path": "/a", "hash": "x", "size": 1, "mtime": 1}}xyz`, "unexpected data"},
		{"second object", `{} {}`, "unexpected data"},
		{"bad encoded path", `{"base64:!!": {"path": "base64:!!", "hash": "x", "size": 1, "mtime": 1}}`, "invalid encoded path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, path, fe.Path)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

// TestLoadMissingFile tests that a missing baseline is a FormatError wrapping not-exist
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFormat)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
