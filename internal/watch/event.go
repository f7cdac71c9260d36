// Package watch runs the polling and real-time detection loops.
package watch

import (
	"context"
	"errors"
	"fmt"
)

// ErrRealtimeUnavailable is returned when the platform notification
// subsystem cannot be used.
var ErrRealtimeUnavailable = errors.New("watch: real-time notifications unavailable")

// EventKind is the kind of a filesystem notification.
type EventKind int

const (
	// EventWrite covers creation and modification; the classifier tells
	// them apart.
	EventWrite EventKind = iota
	// EventRemove is a deletion, or a rename whose destination is unknown.
	EventRemove
	// EventMove is a rename with a known destination.
	EventMove
)

func (k EventKind) String() string {
	switch k {
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventMove:
		return "move"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one notification from an EventSource.
type Event struct {
	Kind  EventKind
	Path  string
	Dest  string // set for EventMove
	IsDir bool
}

// EventSource delivers filesystem notifications for a set of roots.
type EventSource interface {
	// Start subscribes recursively to every root.
	Start(ctx context.Context, roots []string) error

	// Events is closed after Close.
	Events() <-chan Event

	// Errors reports notification errors such as queue overflows. It is
	// closed after Close.
	Errors() <-chan error

	// Close unsubscribes and waits for the source's goroutines.
	Close() error
}
