// Package fim is the public API of the file integrity monitor.
package fim

import (
	"context"

	"github.com/TFMV/fim/internal/integrity"
	"github.com/TFMV/fim/internal/report"
	"github.com/TFMV/fim/internal/walk"
	"github.com/TFMV/fim/internal/watch"
	"go.uber.org/zap"
)

// Re-export the core types from the internal packages
type (
	// Record is the stored state of one file.
	Record = integrity.Record

	// Records maps absolute paths to their Record.
	Records = integrity.Records

	// Change is one detected difference.
	Change = integrity.Change

	// ChangeType classifies a Change.
	ChangeType = integrity.ChangeType

	// Algorithm names a supported hash function.
	Algorithm = integrity.Algorithm

	// Stats summarises one snapshot build.
	Stats = integrity.Stats

	// Builder computes Records for a set of roots.
	Builder = integrity.Builder

	// Classifier re-examines a single path against a baseline.
	Classifier = integrity.Classifier

	// FormatError reports an unreadable or malformed baseline file.
	FormatError = integrity.FormatError

	// Matcher decides which files are excluded from monitoring.
	Matcher = walk.Matcher

	// Reporter receives detected changes.
	Reporter = report.Reporter

	// ReporterFunc adapts a function to a Reporter.
	ReporterFunc = report.Func

	// Re-export watch types
	Mode        = watch.Mode
	Supervisor  = watch.Supervisor
	Event       = watch.Event
	EventKind   = watch.EventKind
	EventSource = watch.EventSource
)

// Re-export the constants
const (
	// Change types
	Created  = integrity.Created
	Deleted  = integrity.Deleted
	Modified = integrity.Modified
	Moved    = integrity.Moved

	// Common algorithms
	DefaultAlgorithm = integrity.DefaultAlgorithm
	SHA256           Algorithm = "sha256"
	SHA512           Algorithm = "sha512"
	BLAKE2b          Algorithm = "blake2b"

	// Watch modes
	ModePolling  = watch.ModePolling
	ModeRealtime = watch.ModeRealtime
	ModeBoth     = watch.ModeBoth

	// Event kinds
	EventWrite  = watch.EventWrite
	EventRemove = watch.EventRemove
	EventMove   = watch.EventMove
)

// Re-export the sentinel errors
var (
	ErrFormat               = integrity.ErrFormat
	ErrUnsupportedAlgorithm = integrity.ErrUnsupportedAlgorithm
	ErrRealtimeUnavailable  = watch.ErrRealtimeUnavailable
)

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	return integrity.ParseAlgorithm(name)
}

// HashFile returns the lowercase hex digest of the file at path.
func HashFile(path string, alg Algorithm) (string, error) {
	return integrity.HashFile(path, alg)
}

// NewMatcher compiles exclusion globs and an optional gitignore-style file.
func NewMatcher(globs []string, ignoreFile string) (*Matcher, error) {
	return walk.NewMatcher(globs, ignoreFile)
}

// Diff compares a baseline with a current snapshot.
func Diff(baseline, current Records) []Change {
	return integrity.Diff(baseline, current)
}

// SaveBaseline atomically writes records to dest.
func SaveBaseline(records Records, dest string) error {
	return integrity.Save(records, dest)
}

// LoadBaseline reads a baseline written by SaveBaseline.
func LoadBaseline(path string) (Records, error) {
	return integrity.Load(path)
}

// Scan loads the baseline at baselinePath, builds a fresh snapshot with b and
// returns the differences.
func Scan(ctx context.Context, b *Builder, baselinePath string) ([]Change, error) {
	baseline, err := integrity.Load(baselinePath)
	if err != nil {
		return nil, err
	}
	current, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	return integrity.Diff(baseline, current), nil
}

// ParseMode validates a watch mode name.
func ParseMode(s string) (Mode, error) {
	return watch.ParseMode(s)
}

// NewFSNotifySource returns the platform notification source.
func NewFSNotifySource(logger *zap.Logger) (EventSource, error) {
	source, err := watch.NewFSNotifySource(logger)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// LogReporter returns a Reporter that logs one info line per change.
func LogReporter(logger *zap.Logger) Reporter {
	return &report.LogReporter{Logger: logger}
}
