package engine

import (
	"errors"
	"fmt"
)

// ErrUserQuit is returned when the operator answers "quit" at a prompt. It
// ends the run without being reported as a failure.
var ErrUserQuit = errors.New("user quit")

// SyntaxError is a usage error detected before any network activity.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string { return e.Msg }

// GenericErrorKind distinguishes the configuration failures of a target.
type GenericErrorKind int

const (
	// NoParameters means the request carries nothing that could be tested.
	NoParameters GenericErrorKind = iota
	// NotTestable means parameters exist but none survived the restrictions.
	NotTestable
)

// GenericError aborts the run for one target.
type GenericError struct {
	Kind GenericErrorKind
	Msg  string
}

func (e *GenericError) Error() string { return e.Msg }

// FilePathError reports a file the run could not manage, such as a
// session file that could not be flushed.
type FilePathError struct {
	Path string
	Err  error
}

func (e *FilePathError) Error() string {
	return fmt.Sprintf("unable to manage file '%s' (%v)", e.Path, e.Err)
}

func (e *FilePathError) Unwrap() error { return e.Err }

// MissingPrivilegesError reports that the output directory is not
// writable. Denied is set when the cause was a permission check.
type MissingPrivilegesError struct {
	Path   string
	Denied bool
	Err    error
}

func (e *MissingPrivilegesError) Error() string {
	prefix := "something went wrong while trying"
	if e.Denied {
		prefix = "you don't have enough permissions"
	}
	return fmt.Sprintf("%s to write to the output directory '%s' (%v)", prefix, e.Path, e.Err)
}

func (e *MissingPrivilegesError) Unwrap() error { return e.Err }

// IsGenericKind reports whether err is a GenericError of the given kind.
func IsGenericKind(err error, kind GenericErrorKind) bool {
	var ge *GenericError
	return errors.As(err, &ge) && ge.Kind == kind
}
