package workspace

import (
	"errors"
	"fmt"
)

// Path security errors.
var (
	// ErrEscape: the canonical path is outside the storage root.
	ErrEscape = errors.New("path escapes storage root")
	// ErrMalformed: the relative path is unusable (empty, absolute, NUL byte,
	// symlink loop).
	ErrMalformed = errors.New("malformed path")
)

// PathSecurityError wraps path security errors with context.
type PathSecurityError struct {
	Op      string
	Path    string
	Wrapped error
	Err     error
}

func (e *PathSecurityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %v: %v", e.Op, e.Path, e.Wrapped, e.Err)
	}
	return fmt.Sprintf("%s: %q: %v", e.Op, e.Path, e.Wrapped)
}

func (e *PathSecurityError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Wrapped}
	}
	return []error{e.Wrapped, e.Err}
}

func IsEscape(err error) bool {
	return errors.Is(err, ErrEscape)
}

func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}

// IsPathError reports whether err is a containment failure, i.e. the caller's fault.
func IsPathError(err error) bool {
	var pathErr *PathSecurityError
	return errors.As(err, &pathErr)
}

func escape(op, path string) error {
	return &PathSecurityError{Op: op, Path: path, Wrapped: ErrEscape}
}

func malformed(op, path string, cause error) error {
	return &PathSecurityError{Op: op, Path: path, Wrapped: ErrMalformed, Err: cause}
}
