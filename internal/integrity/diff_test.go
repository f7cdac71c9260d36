package integrity

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(path, hash string) Record {
	return Record{Path: path, Hash: hash, Size: int64(len(hash)), Mtime: 1700000000.5}
}

func records(rs ...Record) Records {
	out := make(Records, len(rs))
	for _, r := range rs {
		out[r.Path] = r
	}
	return out
}

// TestDiffCreatedAndDeleted tests a baseline that lost one file and gained another
func TestDiffCreatedAndDeleted(t *testing.T) {
	baseline := records(rec("/a", "H1"), rec("/b", "H2"))
	current := records(rec("/b", "H2"), rec("/c", "H3"))

	changes := Diff(baseline, current)
	assert.Equal(t, []Change{
		CreatedChange("/c", "H3"),
		DeletedChange("/a", "H1"),
	}, changes)
}

// TestDiffModified tests a file whose hash changed
func TestDiffModified(t *testing.T) {
	changes := Diff(records(rec("/m", "H1")), records(rec("/m", "H9")))
	require.Len(t, changes, 1)
	assert.Equal(t, ModifiedChange("/m", "H1", "H9"), changes[0])
	assert.Equal(t, "MODIFIED /m before=H1 after=H9", changes[0].String())
}

// TestDiffIgnoresMetadata tests that only the hash decides modification
func TestDiffIgnoresMetadata(t *testing.T) {
	baseline := records(Record{Path: "/x", Hash: "H", Size: 1, Mtime: 1})
	current := records(Record{Path: "/x", Hash: "H", Size: 2, Mtime: 2})
	assert.Empty(t, Diff(baseline, current))
}

// TestDiffIdempotent tests that comparing a state with itself yields nothing
func TestDiffIdempotent(t *testing.T) {
	assert.Empty(t, Diff(Records{}, Records{}))
	assert.Empty(t, Diff(nil, nil))

	b := records(rec("/a", "1"), rec("/b", "2"), rec("/c/d", "3"))
	assert.Empty(t, Diff(b, b))
}

// TestDiffPartition tests the created/deleted/modified partition and ordering on random inputs
func TestDiffPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		baseline, current := Records{}, Records{}
		for j := 0; j < 30; j++ {
			p := fmt.Sprintf("/f%02d", rng.Intn(40))
			switch rng.Intn(4) {
			case 0:
				baseline[p] = rec(p, "old")
			case 1:
				current[p] = rec(p, "new")
			case 2:
				baseline[p] = rec(p, "same")
				current[p] = rec(p, "same")
			case 3:
				baseline[p] = rec(p, "old")
				current[p] = rec(p, "new")
			}
		}

		var created, deleted, modified []string
		for p := range current {
			if _, ok := baseline[p]; !ok {
				created = append(created, p)
			}
		}
		for p, b := range baseline {
			c, ok := current[p]
			switch {
			case !ok:
				deleted = append(deleted, p)
			case b.Hash != c.Hash:
				modified = append(modified, p)
			}
		}
		sort.Strings(created)
		sort.Strings(deleted)
		sort.Strings(modified)

		var expected []Change
		for _, p := range created {
			expected = append(expected, CreatedChange(p, current[p].Hash))
		}
		for _, p := range deleted {
			expected = append(expected, DeletedChange(p, baseline[p].Hash))
		}
		for _, p := range modified {
			expected = append(expected, ModifiedChange(p, baseline[p].Hash, current[p].Hash))
		}

		got := Diff(baseline, current)
		if len(expected) == 0 {
			require.Empty(t, got, "iteration %d", i)
			continue
		}
		require.Equal(t, expected, got, "iteration %d", i)
	}
}

// TestChangeString tests the audit line of every change type
func TestChangeString(t *testing.T) {
	tests := []struct {
		change   Change
		expected string
	}{
		{CreatedChange("/c", "H3"), "CREATED /c hash=H3"},
		{DeletedChange("/a", "H1"), "DELETED /a hash=H1"},
		{ModifiedChange("/m", "H1", "H9"), "MODIFIED /m before=H1 after=H9"},
		{MovedChange("/old", "/new"), "MOVED /old -> /new"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.change.String())
	}

	moved := MovedChange("/old", "/new")
	assert.Equal(t, "/new", moved.Path)
	assert.Equal(t, Moved, moved.Type)
}
