package walk

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/armon/go-radix"
)

// Roots indexes the monitored roots so that an arbitrary path can be mapped
// back to the root that owns it. Nested roots resolve to the deepest one.
// A Roots is read-only after NewRoots and safe for concurrent lookups.
type Roots struct {
	tree *radix.Tree
	list []string
}

// NewRoots builds the index. Roots are cleaned but otherwise used as given.
func NewRoots(roots []string) *Roots {
	r := &Roots{tree: radix.New()}
	for _, root := range roots {
		root = filepath.Clean(root)
		if _, exists := r.tree.Insert(root, root); !exists {
			r.list = append(r.list, root)
		}
	}
	return r
}

// List returns the distinct roots in insertion order.
func (r *Roots) List() []string {
	return append([]string(nil), r.list...)
}

// Owner returns the deepest root that is p itself or an ancestor of p.
func (r *Roots) Owner(p string) (string, bool) {
	p = filepath.Clean(p)
	for {
		prefix, v, ok := r.tree.LongestPrefix(p)
		if !ok {
			return "", false
		}
		root := v.(string)
		if prefix == p || strings.HasPrefix(p[len(prefix):], string(os.PathSeparator)) || strings.HasSuffix(prefix, string(os.PathSeparator)) {
			return root, true
		}
		// "/data/app" is a string prefix of "/data/apple" but not an
		// ancestor; retry with the part of p before the mismatch.
		if len(prefix) == 0 {
			return "", false
		}
		p = p[:len(prefix)-1]
	}
}
