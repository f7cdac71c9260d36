// Package report delivers detected changes to logs, metrics and files.
package report

import (
	"sync"

	"github.com/TFMV/fim/internal/integrity"
	"go.uber.org/zap"
)

// Reporter receives every detected change. Implementations must be safe for
// concurrent use: the polling and real-time loops report independently.
type Reporter interface {
	Report(change integrity.Change)
}

// Func adapts a function to a Reporter.
type Func func(change integrity.Change)

func (f Func) Report(change integrity.Change) { f(change) }

// LogReporter writes one info line per change.
type LogReporter struct {
	Logger *zap.Logger
}

func (r *LogReporter) Report(change integrity.Change) {
	r.Logger.Info(change.String(),
		zap.String("change_type", string(change.Type)),
		zap.String("path", change.Path))
}

// Multi fans a change out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(change integrity.Change) {
	for _, r := range m {
		if r != nil {
			r.Report(change)
		}
	}
}

// Collector keeps every reported change in memory, in arrival order.
type Collector struct {
	mu      sync.Mutex
	changes []integrity.Change
}

func (c *Collector) Report(change integrity.Change) {
	c.mu.Lock()
	c.changes = append(c.changes, change)
	c.mu.Unlock()
}

// Changes returns a copy of the collected changes.
func (c *Collector) Changes() []integrity.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]integrity.Change(nil), c.changes...)
}

// All reports each change in order.
func All(r Reporter, changes []integrity.Change) {
	for _, c := range changes {
		r.Report(c)
	}
}
