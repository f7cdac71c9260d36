package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TFMV/fim/internal/walk"
	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
)

// DefaultPairWindow is how long a rename waits for the matching create that
// carries its destination.
const DefaultPairWindow = 100 * time.Millisecond

// FSNotifySource is an EventSource backed by fsnotify. fsnotify reports a
// rename as a Rename for the old name followed by a Create for the new one;
// the two are paired into one EventMove when they arrive within PairWindow.
// An unpaired rename is delivered as EventRemove.
type FSNotifySource struct {
	PairWindow time.Duration
	Logger     *zap.Logger

	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	roots *walk.Roots

	mu   sync.Mutex
	dirs map[string]struct{}
}

// pendingRename is a Rename waiting for its Create.
type pendingRename struct {
	path  string
	isDir bool
}

// NewFSNotifySource creates the underlying watcher. Failure means real-time
// mode cannot be offered on this host.
func NewFSNotifySource(logger *zap.Logger) (*FSNotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRealtimeUnavailable, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSNotifySource{
		PairWindow: DefaultPairWindow,
		Logger:     logger,
		watcher:    w,
		events:     make(chan Event, 256),
		errors:     make(chan error, 16),
		done:       make(chan struct{}),
		dirs:       make(map[string]struct{}),
	}, nil
}

// Start watches every directory under each root. A root that is a file is
// watched through its parent directory and only its own events are kept.
func (s *FSNotifySource) Start(ctx context.Context, roots []string) error {
	s.roots = walk.NewRoots(roots)
	for _, root := range s.roots.List() {
		info, err := os.Stat(root)
		if err != nil {
			s.Logger.Warn("cannot watch root", zap.String("root", root), zap.Error(err))
			continue
		}
		if !info.IsDir() {
			if err := s.addDir(filepath.Dir(root)); err != nil {
				s.Logger.Warn("cannot watch root", zap.String("root", root), zap.Error(err))
			}
			continue
		}
		if err := s.addRecursive(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.Logger.Info("real-time watch started", zap.Int("roots", len(s.roots.List())), zap.Int("directories", s.watchedDirs()))
	return nil
}

func (s *FSNotifySource) Events() <-chan Event { return s.events }

func (s *FSNotifySource) Errors() <-chan error { return s.errors }

// Close stops the reader goroutine and releases every watch.
func (s *FSNotifySource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
		close(s.events)
		close(s.errors)
	})
	return err
}

func (s *FSNotifySource) loop(ctx context.Context) {
	defer s.wg.Done()

	var (
		pending *pendingRename
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timerC = nil
	}
	flush := func() bool {
		if pending == nil {
			return true
		}
		ev := Event{Kind: EventRemove, Path: pending.path, IsDir: pending.isDir}
		pending = nil
		stopTimer()
		return s.send(ctx, ev)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return

		case <-timerC:
			timerC = nil
			if !flush() {
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				err = fmt.Errorf("notification queue overflowed, events were lost: %w", err)
			}
			select {
			case s.errors <- err:
			default:
				s.Logger.Warn("watch error", zap.Error(err))
			}

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			switch {
			case ev.Has(fsnotify.Create):
				isDir := s.isDir(ev.Name)
				if isDir {
					s.watchNewDir(ctx, ev.Name)
				}
				if pending != nil {
					move := Event{Kind: EventMove, Path: pending.path, Dest: ev.Name, IsDir: pending.isDir || isDir}
					pending = nil
					stopTimer()
					if !s.send(ctx, move) {
						return
					}
					continue
				}
				if !s.sendOwned(ctx, Event{Kind: EventWrite, Path: ev.Name, IsDir: isDir}) {
					return
				}

			case ev.Has(fsnotify.Write):
				if !s.sendOwned(ctx, Event{Kind: EventWrite, Path: ev.Name, IsDir: s.watched(ev.Name)}) {
					return
				}

			case ev.Has(fsnotify.Remove):
				isDir := s.forget(ev.Name)
				if !s.sendOwned(ctx, Event{Kind: EventRemove, Path: ev.Name, IsDir: isDir}) {
					return
				}

			case ev.Has(fsnotify.Rename):
				if !flush() {
					return
				}
				isDir := s.forget(ev.Name)
				if _, ok := s.roots.Owner(ev.Name); !ok {
					continue
				}
				pending = &pendingRename{path: ev.Name, isDir: isDir}
				window := s.PairWindow
				if window <= 0 {
					window = DefaultPairWindow
				}
				if timer == nil {
					timer = time.NewTimer(window)
				} else {
					timer.Reset(window)
				}
				timerC = timer.C
			}
			// Chmod cannot change content and is ignored.
		}
	}
}

// send delivers ev unless the source is shutting down.
func (s *FSNotifySource) send(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

// sendOwned delivers ev only if its path lies under a monitored root; file
// roots share their parent directory with unrelated files.
func (s *FSNotifySource) sendOwned(ctx context.Context, ev Event) bool {
	if _, ok := s.roots.Owner(ev.Path); !ok {
		return true
	}
	return s.send(ctx, ev)
}

// watchNewDir subscribes to a directory that appeared after Start and
// reports the files already inside it, whose own events were missed.
func (s *FSNotifySource) watchNewDir(ctx context.Context, dir string) {
	if _, ok := s.roots.Owner(dir); !ok {
		return
	}
	if err := s.addRecursive(dir); err != nil {
		s.Logger.Warn("cannot watch new directory", zap.String("path", dir), zap.Error(err))
		return
	}
	err := walk.Enumerate(ctx, dir, walk.Options{Logger: s.Logger}, func(path string) error {
		if !s.send(ctx, Event{Kind: EventWrite, Path: path}) {
			return context.Canceled
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		s.Logger.Debug("scan of new directory incomplete", zap.String("path", dir), zap.Error(err))
	}
}

// addRecursive watches root and every directory below it. Symlinked
// directories are not followed.
func (s *FSNotifySource) addRecursive(root string) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			if err := s.addDir(path); err != nil {
				if path == root {
					return err
				}
				s.Logger.Warn("cannot watch directory", zap.String("path", path), zap.Error(err))
				return godirwalk.SkipThis
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if path == root {
				return godirwalk.Halt
			}
			s.Logger.Warn("skipping unreadable directory", zap.String("path", path), zap.Error(err))
			return godirwalk.SkipNode
		},
	})
}

func (s *FSNotifySource) addDir(dir string) error {
	if err := s.watcher.Add(dir); err != nil {
		return err
	}
	s.mu.Lock()
	s.dirs[dir] = struct{}{}
	s.mu.Unlock()
	return nil
}

// forget drops a vanished path from the watched set and reports whether it
// was a watched directory.
func (s *FSNotifySource) forget(path string) bool {
	s.mu.Lock()
	_, ok := s.dirs[path]
	delete(s.dirs, path)
	s.mu.Unlock()
	if ok {
		// The kernel watch may already be gone.
		_ = s.watcher.Remove(path)
	}
	return ok
}

func (s *FSNotifySource) watched(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dirs[path]
	return ok
}

func (s *FSNotifySource) watchedDirs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirs)
}

func (s *FSNotifySource) isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}
