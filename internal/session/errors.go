package session

import (
	"errors"
	"fmt"
)

var (
	ErrAuthNotFound = errors.New("auth not found")
	ErrUserNotFound = errors.New("user not found")
)

// InvariantError reports a broken precondition of the coordination layer.
// It is never recovered locally.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("session invariant violated in %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// IsInvariant reports whether err is or wraps an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// FatalHandler receives invariant violations raised outside a call that can
// return them, such as inside a document listener.
type FatalHandler func(err error)

// PanicOnFatal is the default FatalHandler. The panic reaches the host's
// top-level recovery.
func PanicOnFatal(err error) { panic(err) }
