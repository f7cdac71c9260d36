package integrity

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("integrity: invalid baseline")

	// ErrUnsupportedAlgorithm is matched by every *UnsupportedAlgorithmError.
	ErrUnsupportedAlgorithm = errors.New("integrity: unsupported hash algorithm")
)

// FormatError reports a baseline file that is missing, unreadable or
// structurally invalid.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("baseline %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}

// UnsupportedAlgorithmError is returned by ParseAlgorithm for unknown names.
type UnsupportedAlgorithmError struct {
	Name string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported hash algorithm %q (supported: %s)", e.Name, supportedNames())
}

func (e *UnsupportedAlgorithmError) Is(target error) bool {
	return target == ErrUnsupportedAlgorithm
}
