package integrity

import (
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// Classifier is the single-path analogue of Diff, used for filesystem events.
// The Baseline is never modified.
type Classifier struct {
	Baseline  Records
	Algorithm Algorithm
	Logger    *zap.Logger
}

// Classify re-examines one path against the baseline and reports at most one
// change. A path that is gone, or is no longer a regular file, yields a
// deletion only if it was tracked. Symlinks are followed.
// Errors while hashing an existing file are logged and yield no change; the
// next full scan will pick the file up.
func (c *Classifier) Classify(path string) (Change, bool) {
	base, tracked := c.Baseline[path]

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if tracked {
				return DeletedChange(path, base.Hash), true
			}
			return Change{}, false
		}
		c.logger().Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
		return Change{}, false
	}
	if !info.Mode().IsRegular() {
		// Directories, FIFOs, sockets and devices are never snapshotted, so a
		// tracked path that became one is gone as far as the baseline goes.
		if tracked {
			return DeletedChange(path, base.Hash), true
		}
		return Change{}, false
	}

	alg := c.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	sum, err := HashFile(path, alg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && tracked {
			// Removed between stat and open.
			return DeletedChange(path, base.Hash), true
		}
		c.logger().Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
		return Change{}, false
	}

	switch {
	case !tracked:
		return CreatedChange(path, sum), true
	case base.Hash != sum:
		return ModifiedChange(path, base.Hash, sum), true
	}
	return Change{}, false
}

func (c *Classifier) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
