package integrity

import (
	"fmt"
	"strings"
)

// ChangeType classifies a deviation from the baseline.
type ChangeType string

const (
	Created  ChangeType = "created"
	Deleted  ChangeType = "deleted"
	Modified ChangeType = "modified"
	Moved    ChangeType = "moved"
)

// Detail keys carried in Change.Details.
const (
	DetailHash   = "hash"
	DetailBefore = "before"
	DetailAfter  = "after"
	DetailFrom   = "from"
	DetailTo     = "to"
)

// Change is a single detected deviation. It is a plain value and is handed
// to a reporter as soon as it is produced.
type Change struct {
	Type    ChangeType        `json:"change_type" yaml:"change_type"`
	Path    string            `json:"path" yaml:"path"`
	Details map[string]string `json:"details" yaml:"details"`
}

// CreatedChange records a path absent from the baseline.
func CreatedChange(path, hash string) Change {
	return Change{Type: Created, Path: path, Details: map[string]string{DetailHash: hash}}
}

// DeletedChange records a baseline path that no longer exists.
func DeletedChange(path, hash string) Change {
	return Change{Type: Deleted, Path: path, Details: map[string]string{DetailHash: hash}}
}

// ModifiedChange records a path whose hash differs from the baseline.
func ModifiedChange(path, before, after string) Change {
	return Change{Type: Modified, Path: path, Details: map[string]string{DetailBefore: before, DetailAfter: after}}
}

// MovedChange records a rename; Path is the destination.
func MovedChange(from, to string) Change {
	return Change{Type: Moved, Path: to, Details: map[string]string{DetailFrom: from, DetailTo: to}}
}

// String renders the audit line for the change.
func (c Change) String() string {
	switch c.Type {
	case Modified:
		return fmt.Sprintf("MODIFIED %s before=%s after=%s", c.Path, c.Details[DetailBefore], c.Details[DetailAfter])
	case Created:
		return fmt.Sprintf("CREATED %s hash=%s", c.Path, c.Details[DetailHash])
	case Deleted:
		return fmt.Sprintf("DELETED %s hash=%s", c.Path, c.Details[DetailHash])
	case Moved:
		return fmt.Sprintf("MOVED %s -> %s", c.Details[DetailFrom], c.Details[DetailTo])
	}
	return strings.ToUpper(string(c.Type)) + " " + c.Path
}
