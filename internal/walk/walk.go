// Package walk enumerates the regular files under a set of monitored roots.
package walk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
)

// FileFunc is called once per enumerated file. Returning an error stops the
// enumeration and the error is returned from Enumerate.
type FileFunc func(path string) error

// Options configures an enumeration.
type Options struct {
	// FollowSymlinks yields links to regular files and descends into links
	// to directories. When false, symlinks are neither yielded nor traversed.
	FollowSymlinks bool

	// Matcher excludes files. A nil Matcher excludes nothing.
	Matcher *Matcher

	Logger *zap.Logger
}

// Enumerate calls fn for every regular file under root. A root that is a
// file yields exactly itself. Unreadable directories are logged and skipped;
// only context cancellation or an error from fn aborts the walk.
func Enumerate(ctx context.Context, root string, opts Options, fn FileFunc) error {
	root = filepath.Clean(root)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat root %s: %w", root, err)
	}

	e := &enumerator{
		ctx:     ctx,
		root:    root,
		opts:    opts,
		fn:      fn,
		logger:  logger,
		visited: make(map[string]struct{}),
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			logger.Debug("root is not a regular file", zap.String("root", root))
			return nil
		}
		return e.emit(root)
	}

	if real, err := filepath.EvalSymlinks(root); err == nil {
		e.visited[real] = struct{}{}
	}

	logger.Debug("starting enumeration", zap.String("root", root), zap.Bool("follow_symlinks", opts.FollowSymlinks))
	return e.walkDir(root, root)
}

type enumerator struct {
	ctx    context.Context
	root   string
	opts   Options
	fn     FileFunc
	logger *zap.Logger

	// visited holds the real paths of the root and of every directory entered
	// through a symlink, so that link cycles terminate.
	visited map[string]struct{}

	// abort is the first error returned by fn.
	abort error
}

// walkDir walks the physical directory, reporting paths under logical.
// They differ only when a symlinked directory is being followed.
func (e *enumerator) walkDir(physical, logical string) error {
	err := godirwalk.Walk(physical, &godirwalk.Options{
		Unsorted:            true,
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := e.ctx.Err(); err != nil {
				return err
			}
			path = logical + strings.TrimPrefix(path, physical)
			switch {
			case de.IsDir():
				return nil
			case de.IsSymlink():
				return e.symlink(path)
			case de.IsRegular():
				return e.emit(path)
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if e.abort != nil || e.ctx.Err() != nil {
				return godirwalk.Halt
			}
			e.logger.Warn("skipping unreadable path",
				zap.String("path", logical+strings.TrimPrefix(path, physical)),
				zap.Error(err))
			return godirwalk.SkipNode
		},
	})

	switch {
	case e.abort != nil:
		return e.abort
	case e.ctx.Err() != nil:
		return e.ctx.Err()
	case err != nil && !errors.Is(err, filepath.SkipDir):
		return fmt.Errorf("walk %s: %w", logical, err)
	}
	return nil
}

// symlink applies the symlink policy to the link at path.
func (e *enumerator) symlink(path string) error {
	if !e.opts.FollowSymlinks {
		e.logger.Debug("skipping symlink", zap.String("path", path))
		return nil
	}

	target, err := os.Stat(path)
	if err != nil {
		e.logger.Debug("skipping dangling symlink", zap.String("path", path), zap.Error(err))
		return nil
	}

	switch {
	case target.Mode().IsRegular():
		return e.emit(path)
	case target.IsDir():
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			e.logger.Debug("cannot resolve symlink", zap.String("path", path), zap.Error(err))
			return nil
		}
		if _, seen := e.visited[real]; seen {
			e.logger.Debug("skipping cyclic symlink", zap.String("path", path), zap.String("target", real))
			return nil
		}
		e.visited[real] = struct{}{}
		return e.walkDir(real, path)
	}
	return nil
}

// emit applies exclusion and hands the path to fn.
func (e *enumerator) emit(path string) error {
	if e.opts.Matcher != nil && e.opts.Matcher.Excluded(e.root, path) {
		e.logger.Debug("excluded", zap.String("path", path))
		return nil
	}
	if err := e.fn(path); err != nil {
		e.abort = err
		return err
	}
	return nil
}
