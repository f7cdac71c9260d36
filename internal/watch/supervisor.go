package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/fim/internal/integrity"
	"github.com/TFMV/fim/internal/report"
	"github.com/TFMV/fim/internal/walk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Mode selects which detection loops a Supervisor runs.
type Mode string

const (
	ModePolling  Mode = "polling"
	ModeRealtime Mode = "realtime"
	ModeBoth     Mode = "both"
)

// ParseMode validates a mode name. An empty name means ModeBoth.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBoth, nil
	case ModePolling, ModeRealtime, ModeBoth:
		return m, nil
	}
	return "", fmt.Errorf("unknown watch mode %q (polling, realtime, both)", s)
}

func (m Mode) polling() bool  { return m == ModePolling || m == ModeBoth }
func (m Mode) realtime() bool { return m == ModeRealtime || m == ModeBoth }

// Supervisor runs the polling and real-time loops against one baseline.
// Both loops report through the same Reporter and may report the same change.
type Supervisor struct {
	// Baseline is shared read-only by both loops.
	Baseline integrity.Records

	Builder    *integrity.Builder
	Classifier *integrity.Classifier
	Reporter   report.Reporter

	// Source is required for real-time mode.
	Source EventSource

	// Roots maps event paths back to their root for exclusion. Built from
	// Builder.Roots when nil.
	Roots          *walk.Roots
	Matcher        *walk.Matcher
	FollowSymlinks bool

	Interval           time.Duration
	Debounce           time.Duration
	MaxDebounceEntries int

	// OnScan, when set, is called after every completed polling cycle.
	OnScan func(integrity.Stats)

	Logger *zap.Logger

	debouncer *Debouncer
}

// Run starts the loops selected by mode and blocks until ctx is done and
// every loop has exited. If real-time mode was requested and the source
// cannot start, Run returns an error wrapping ErrRealtimeUnavailable without
// starting anything.
func (s *Supervisor) Run(ctx context.Context, mode Mode) error {
	logger := s.logger()
	if s.Builder == nil {
		return errors.New("watch: supervisor has no snapshot builder")
	}
	if s.Roots == nil {
		s.Roots = walk.NewRoots(s.Builder.Roots)
	}
	if s.Classifier == nil {
		s.Classifier = &integrity.Classifier{Baseline: s.Baseline, Algorithm: s.Builder.Algorithm, Logger: logger}
	}
	if s.Reporter == nil {
		s.Reporter = &report.LogReporter{Logger: logger}
	}
	s.debouncer = NewDebouncer(s.Debounce, s.MaxDebounceEntries)

	if mode.realtime() {
		if s.Source == nil {
			return fmt.Errorf("%w: no event source configured", ErrRealtimeUnavailable)
		}
		if err := s.Source.Start(ctx, s.Roots.List()); err != nil {
			s.Source.Close()
			if errors.Is(err, ErrRealtimeUnavailable) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrRealtimeUnavailable, err)
		}
	}

	var wg sync.WaitGroup
	if mode.polling() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.poll(ctx)
		}()
	}
	if mode.realtime() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.listen(ctx)
		}()
	}

	logger.Info("monitoring started",
		zap.String("mode", string(mode)),
		zap.Strings("roots", s.Roots.List()),
		zap.Duration("interval", s.Interval),
		zap.Duration("debounce", s.Debounce))

	<-ctx.Done()
	if mode.realtime() {
		if err := s.Source.Close(); err != nil {
			logger.Debug("closing event source", zap.Error(err))
		}
	}
	wg.Wait()
	logger.Info("monitoring stopped")
	return nil
}

// poll runs a full scan immediately and then once per Interval.
func (s *Supervisor) poll(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// scan performs one polling cycle.
func (s *Supervisor) scan(ctx context.Context) {
	current, stats, err := s.Builder.BuildWithStats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger().Error("scan failed", zap.Error(err))
		}
		return
	}
	changes := integrity.Diff(s.Baseline, current)
	report.All(s.Reporter, changes)
	if s.OnScan != nil {
		s.OnScan(stats)
	}
	s.logger().Debug("scan cycle complete", zap.Int("files", len(current)), zap.Int("changes", len(changes)))
}

// listen consumes the event source until ctx is done or the source closes.
func (s *Supervisor) listen(ctx context.Context) {
	events := s.Source.Events()
	errs := s.Source.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.logger().Warn("event queue overflowed, changes may have been missed until the next scan", zap.Error(err))
				continue
			}
			s.logger().Warn("watch error", zap.Error(err))
		}
	}
}

// handle turns one event into at most one reported change.
func (s *Supervisor) handle(ev Event) {
	if ev.IsDir {
		return
	}
	if s.excluded(ev.Path) {
		return
	}
	if !s.FollowSymlinks && isSymlink(ev.Path) {
		return
	}
	if !s.debouncer.Allow(ev.Path) {
		s.logger().Debug("debounced", zap.String("event", ev.Kind.String()), zap.String("path", ev.Path))
		return
	}

	switch ev.Kind {
	case EventMove:
		s.Reporter.Report(integrity.MovedChange(ev.Path, ev.Dest))
	case EventWrite, EventRemove:
		if change, ok := s.Classifier.Classify(ev.Path); ok {
			s.Reporter.Report(change)
		}
	}
}

func (s *Supervisor) excluded(path string) bool {
	if s.Matcher == nil || s.Matcher.Empty() {
		return false
	}
	root, ok := s.Roots.Owner(path)
	if !ok {
		root = path
	}
	return s.Matcher.Excluded(root, path)
}

func (s *Supervisor) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}
