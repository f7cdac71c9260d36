package integrity

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TFMV/fim/internal/walk"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Stats summarises one snapshot build.
type Stats struct {
	FilesHashed  int64         `json:"files_hashed" yaml:"files_hashed"`
	FilesSkipped int64         `json:"files_skipped" yaml:"files_skipped"`
	BytesHashed  int64         `json:"bytes_hashed" yaml:"bytes_hashed"`
	Elapsed      time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Builder computes Records for a set of roots.
type Builder struct {
	Roots          []string
	Algorithm      Algorithm
	Matcher        *walk.Matcher
	FollowSymlinks bool

	// Workers bounds concurrent hashing. Zero means runtime.NumCPU().
	Workers int

	Logger *zap.Logger
}

// Build returns the current state of every file under the roots.
func (b *Builder) Build(ctx context.Context) (Records, error) {
	records, _, err := b.BuildWithStats(ctx)
	return records, err
}

// BuildWithStats is Build plus traversal statistics. Files that cannot be
// hashed or stat'ed are logged and left out; the only error returned is the
// context's.
func (b *Builder) BuildWithStats(ctx context.Context) (Records, Stats, error) {
	logger := b.logger()
	alg := b.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	start := time.Now()
	var (
		mu      sync.Mutex
		records = make(Records)
		stats   Stats
	)

	p := pool.New().WithMaxGoroutines(workers)
	seen := make(map[string]struct{})
	opts := walk.Options{FollowSymlinks: b.FollowSymlinks, Matcher: b.Matcher, Logger: logger}

	var walkErr error
	for _, root := range b.Roots {
		err := walk.Enumerate(ctx, root, opts, func(path string) error {
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}

			p.Go(func() {
				if ctx.Err() != nil {
					return
				}
				rec, err := NewRecord(path, alg)
				if err != nil {
					atomic.AddInt64(&stats.FilesSkipped, 1)
					logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
					return
				}
				atomic.AddInt64(&stats.FilesHashed, 1)
				atomic.AddInt64(&stats.BytesHashed, rec.Size)
				mu.Lock()
				records[path] = rec
				mu.Unlock()
			})
			return nil
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				walkErr = err
				break
			}
			logger.Warn("skipping root", zap.String("root", root), zap.Error(err))
		}
	}
	p.Wait()

	stats.Elapsed = time.Since(start)
	if walkErr == nil {
		walkErr = ctx.Err()
	}
	if walkErr != nil {
		return nil, stats, walkErr
	}

	logger.Info("snapshot built",
		zap.Int("files", len(records)),
		zap.Int64("skipped", stats.FilesSkipped),
		zap.Int64("bytes", stats.BytesHashed),
		zap.Duration("elapsed", stats.Elapsed))
	return records, stats, nil
}

func (b *Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
