package integrity

import (
	"fmt"
	"os"
	"time"
)

// Record is the trusted or observed state of one file at one instant.
// Only Hash decides whether a file changed; Size and Mtime are kept for
// auditing.
type Record struct {
	Path  string  `json:"path" yaml:"path"`
	Hash  string  `json:"hash" yaml:"hash"`
	Size  int64   `json:"size" yaml:"size"`
	Mtime float64 `json:"mtime" yaml:"mtime"`
}

// Records maps a canonical path to its Record. A Baseline and a Snapshot
// are both Records.
type Records map[string]Record

// Paths returns the keys of r in no particular order.
func (r Records) Paths() []string {
	paths := make([]string, 0, len(r))
	for p := range r {
		paths = append(paths, p)
	}
	return paths
}

// NewRecord hashes and stats the file at path.
func NewRecord(path string, alg Algorithm) (Record, error) {
	sum, err := HashFile(path, alg)
	if err != nil {
		return Record{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Record{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Record{
		Path:  path,
		Hash:  sum,
		Size:  info.Size(),
		Mtime: mtimeSeconds(info.ModTime()),
	}, nil
}

// mtimeSeconds converts a modification time to fractional Unix seconds.
func mtimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
