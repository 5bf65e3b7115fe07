package files

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Write error kinds.
var (
	ErrMissingParent    = errors.New("parent directory does not exist")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoSpace          = errors.New("no space left on device")
	ErrIOFailure        = errors.New("i/o failure")

	// ErrTargetIsDirectory is reported when the resolved path names a
	// directory. It matches ErrMissingParent under errors.Is.
	ErrTargetIsDirectory = fmt.Errorf("%w: target is a directory", ErrMissingParent)
)

// WriteError wraps a write failure with its kind and underlying cause.
type WriteError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
}

func (e *WriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MissingFieldError reports a required request field that was not sent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing field: " + e.Field
}

func IsMissingField(err error) bool {
	var fieldErr *MissingFieldError
	return errors.As(err, &fieldErr)
}

func IsMissingParent(err error) bool {
	return errors.Is(err, ErrMissingParent)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsNoSpace(err error) bool {
	return errors.Is(err, ErrNoSpace)
}

// IsWriteError reports whether err is an environmental write failure.
func IsWriteError(err error) bool {
	var writeErr *WriteError
	return errors.As(err, &writeErr)
}

// classify maps an OS error onto a write error kind.
func classify(op, path string, err error) error {
	var writeErr *WriteError
	if errors.As(err, &writeErr) {
		return err
	}

	kind := ErrIOFailure
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		kind = ErrMissingParent
	case errors.Is(err, fs.ErrPermission), isReadOnlyFS(err):
		kind = ErrPermissionDenied
	case isNoSpace(err):
		kind = ErrNoSpace
	}
	return &WriteError{Op: op, Path: path, Kind: kind, Err: err}
}
